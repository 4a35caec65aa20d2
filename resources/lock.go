//go:build !js && !wasip1

package resources

import (
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WriteLocked replaces the file at path with data. Writers of the same path
// are serialized through path+".lock", and readers only ever see the old or
// the new contents.
func WriteLocked(path string, data []byte) error {
	lockPath := path + ".lock"
	return execOnFileLock(lockPath, func() error {
		return writeAtomic(path, data)
	})
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file in %q", dir)
	}
	tmpPath := tmp.Name()
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "writing %q", tmpPath)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "renaming %q to %q", tmpPath, path)
	}
	return nil
}

// execOnFileLock locks lockPath, creating it if needed, and runs fn. If the
// lock is held elsewhere it polls every 1 to 2 seconds until acquired.
func execOnFileLock(lockPath string, fn func() error) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, lockErr := fileLock.TryLock()
		if lockErr != nil {
			return errors.Wrapf(lockErr, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}
	defer func() {
		if unlockErr := fileLock.Unlock(); unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				klog.Errorf("Error unlocking file %q: %v", lockPath,
					unlockErr)
			}
		}
	}()
	return fn()
}
