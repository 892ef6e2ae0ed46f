// Package apputil provides filesystem helpers used during application
// startup.
package apputil

import (
	"os"
	"path/filepath"
)

// EnsureDir checks that the directory a file will be placed in exists, and
// creates the path if not.
func EnsureDir(fileName string) (err error) {
	dirName := filepath.Dir(fileName)
	if _, err = os.Stat(dirName); os.IsNotExist(err) {
		return os.MkdirAll(dirName, 0700)
	}
	return
}

// FileExists reports whether the named path exists and is a regular file.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
