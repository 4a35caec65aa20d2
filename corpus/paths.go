package corpus

import (
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/yargevad/filepathx"
)

type PathInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	Dir     bool
}

// Orderings accepted by SortPaths.
const (
	OrderNone           = ""
	OrderSizeAscending  = "size_ascending"
	OrderSizeDescending = "size_descending"
	OrderPathAscending  = "path_ascending"
	OrderPathDescending = "path_descending"
	OrderRandom         = "random"
)

// GlobTexts
// Given a directory path, recursively finds all `.txt` files, returning a
// slice of PathInfo.
func GlobTexts(dirPath string) (pathInfos []PathInfo, err error) {
	textPaths, err := filepathx.Glob(dirPath + "/**/*.txt")
	if err != nil {
		return nil, err
	}
	numMatches := len(textPaths)
	if numMatches == 0 {
		return nil, errors.Errorf("%s does not contain any .txt files",
			dirPath)
	}
	pathInfos = make([]PathInfo, numMatches)
	for matchIdx := range textPaths {
		currPath := textPaths[matchIdx]
		if stat, statErr := os.Stat(currPath); statErr != nil {
			return nil, statErr
		} else {
			pathInfos[matchIdx] = PathInfo{
				Path:    currPath,
				Size:    stat.Size(),
				ModTime: stat.ModTime(),
				Dir:     stat.IsDir(),
			}
		}
	}
	return pathInfos, nil
}

// SortPaths reorders pathInfos in place according to order.
func SortPaths(pathInfos []PathInfo, order string, rng *rand.Rand) error {
	switch order {
	case OrderNone:
	case OrderSizeAscending:
		sort.SliceStable(pathInfos, func(i, j int) bool {
			return pathInfos[i].Size < pathInfos[j].Size
		})
	case OrderSizeDescending:
		sort.SliceStable(pathInfos, func(i, j int) bool {
			return pathInfos[i].Size > pathInfos[j].Size
		})
	case OrderPathAscending:
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Path < pathInfos[j].Path
		})
	case OrderPathDescending:
		sort.Slice(pathInfos, func(i, j int) bool {
			return pathInfos[i].Path > pathInfos[j].Path
		})
	case OrderRandom:
		rng.Shuffle(len(pathInfos), func(i, j int) {
			pathInfos[i], pathInfos[j] = pathInfos[j], pathInfos[i]
		})
	default:
		return errors.Errorf("invalid sort spec: %s", order)
	}
	return nil
}

// FindNewestPath
// Returns the path and modified time of the most recently modified entry.
func FindNewestPath(paths []PathInfo) (path string, newest time.Time,
	found bool) {
	for _, pathInfo := range paths {
		if !found || newest.Before(pathInfo.ModTime) {
			newest = pathInfo.ModTime
			path = pathInfo.Path
			found = true
		}
	}
	return path, newest, found
}

// FindNewestText
// Given a directory, recursively scans and returns the path and modified time
// for the newest `.txt` file.
func FindNewestText(dirPath string) (path string, newest time.Time,
	err error) {
	matches, err := GlobTexts(dirPath)
	if err != nil {
		return "", time.Time{}, err
	}
	path, newest, _ = FindNewestPath(matches)
	return path, newest, nil
}
