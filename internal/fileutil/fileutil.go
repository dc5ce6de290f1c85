package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TempPrefix marks in-progress files written by WriteFileAtomic.
const TempPrefix = ".partial-"

// IsTempName reports whether name was produced by WriteFileAtomic and has not
// been renamed into place yet.
func IsTempName(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// FileInfo describes one regular file found by WalkFiles.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// WalkFiles returns every regular file under root. Directories named in skip
// (absolute paths) are not descended into. A missing root yields no files.
func WalkFiles(root string, skip ...string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			for _, s := range skip {
				if p == s {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		files = append(files, FileInfo{Path: p, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// TreeSize sums the sizes of all regular files under root. A missing root has
// size zero.
func TreeSize(root string) (int64, error) {
	files, err := WalkFiles(root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}
