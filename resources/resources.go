package resources

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WriteCounter counts the number of bytes written to it, and every 10 seconds,
// it logs a message reporting the number of bytes written so far.
type WriteCounter struct {
	Total    uint64
	Last     time.Time
	Reported bool
	Path     string
	Size     uint64
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	if time.Since(wc.Last).Seconds() > 10 {
		wc.Reported = true
		wc.Last = time.Now()
		klog.Infof("Downloading %s... %s / %s completed.",
			wc.Path, humanize.Bytes(wc.Total), humanize.Bytes(wc.Size))
	}
	return n, nil
}

// IsURL reports whether uri is an http(s) URL rather than a local path.
func IsURL(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// FetchHTTP
// Fetch a resource from a remote HTTP server with optional bearer token auth.
func FetchHTTP(uri string, auth string) (io.ReadCloser, uint64, error) {
	req, reqErr := http.NewRequest("GET", uri, nil)
	if reqErr != nil {
		return nil, 0, reqErr
	}
	if auth != "" {
		req.Header.Add("Authorization", "Bearer "+auth)
	}
	resp, remoteErr := http.DefaultClient.Do(req)
	if remoteErr != nil {
		return nil, 0, remoteErr
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, errors.Errorf("HTTP status code %d fetching %s",
			resp.StatusCode, uri)
	}
	size, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)
	return resp.Body, size, nil
}

// ReadResource returns the contents of uri, downloading it when it is an
// http(s) URL and reading it through a memory map otherwise.
func ReadResource(uri string) ([]byte, error) {
	if !IsURL(uri) {
		var contents []byte
		err := WithMapped(uri, func(mapped []byte) error {
			contents = append([]byte{}, mapped...)
			return nil
		})
		return contents, err
	}
	body, size, err := FetchHTTP(uri, os.Getenv("BPE_AUTH_TOKEN"))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	counter := &WriteCounter{
		Last: time.Now(),
		Path: uri,
		Size: size,
	}
	var buf bytes.Buffer
	downloaded, ioErr := io.Copy(&buf, io.TeeReader(body, counter))
	if ioErr != nil {
		return nil, errors.Wrapf(ioErr, "error downloading '%s'", uri)
	}
	if counter.Reported {
		klog.Infof("Downloaded %s... %s completed.", uri,
			humanize.Bytes(uint64(downloaded)))
	}
	return buf.Bytes(), nil
}

// WithMapped maps the file at path read-only for the duration of fn. The
// slice is invalid once fn returns.
func WithMapped(path string, fn func([]byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		// Zero length files cannot be mapped.
		return fn([]byte{})
	}
	mapped, unmap, err := readMmap(file)
	if err != nil {
		return errors.Wrapf(err, "error trying to mmap file %s", path)
	}
	defer func() {
		if unmapErr := unmap(); unmapErr != nil {
			klog.Warningf("Error unmapping %s: %v", path, unmapErr)
		}
	}()
	return fn(mapped)
}
