//go:build js || wasip1

package resources

import "os"

// WriteLocked writes data to path. There is no file locking on this
// platform.
func WriteLocked(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
