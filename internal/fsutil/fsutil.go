// Package fsutil provides the small file system predicates the loader and
// the acquisition modules share: rig file discovery and the presence checks
// behind skip-if-exists behavior.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// NonEmptyFile reports whether path names an existing file with content,
// returning its size. Acquisition steps treat such a file as already
// fetched and skip the download.
func NonEmptyFile(path string) (int64, bool) {
	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() || stat.Size() == 0 {
		return 0, false
	}
	return stat.Size(), true
}

// NonEmptyDir reports whether path names an existing directory with at
// least one entry.
func NonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
