package fetcher

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrUnsafeArchive is returned for entries that would extract outside the
// target directory.
var ErrUnsafeArchive = errors.New("archive entry escapes target directory")

// errFound stops the directory walk early.
var errFound = errors.New("found")

// extract unpacks archivePath into dir and moves csvName to the top of dir
// when the archive nests it in a subdirectory.
func extract(archivePath, dir, csvName string) error {
	zr, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = zr.Close()
		return fmt.Errorf("%w: %w", ErrUnsafeArchive, err)
	}
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		name := filepath.FromSlash(zf.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("%w: %q", ErrUnsafeArchive, zf.Name)
		}
		target := filepath.Join(dir, name)

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(zf, target); err != nil {
			return fmt.Errorf("extract %s: %w", zf.Name, err)
		}
	}

	return relocate(dir, csvName)
}

func extractFile(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// relocate finds csvName anywhere under dir and moves it to dir itself.
func relocate(dir, csvName string) error {
	want := filepath.Join(dir, csvName)
	if fileExists(want) {
		return nil
	}

	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == filepath.Base(csvName) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return err
	}
	if found == "" {
		return fmt.Errorf("%s not found in archive", csvName)
	}
	return os.Rename(found, want)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
