// Package storage wraps the filesystem operations of the download pipeline.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sunovault/sunovault/internal/constants"
)

// Sanitize makes a string safe for use as a filename: illegal characters
// become underscores, leading/trailing dots and spaces are trimmed, and the
// result is capped at MaxFilenameLength runes.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(constants.InvalidPathChars, r) {
			return '_'
		}
		return r
	}, s)

	mapped = strings.Trim(mapped, " .")

	runes := []rune(mapped)
	if len(runes) > constants.MaxFilenameLength {
		return string(runes[:constants.MaxFilenameLength])
	}
	return mapped
}

// UniquePath returns path unchanged if nothing exists there, otherwise the
// first free variant with a " v2", " v3", ... suffix before the extension.
// Any stat error counts as free; the create that follows reports it.
func UniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s v%d%s", base, counter, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// CreateFile opens path for writing, truncating any existing content.
func CreateFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FilePermissions)
}

func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, constants.FilePermissions)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

// DeleteFolderIfEmpty removes a directory only when it has no entries.
func DeleteFolderIfEmpty(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return os.Remove(dirPath)
	}
	return nil
}
