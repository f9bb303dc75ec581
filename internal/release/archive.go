package release

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adamancini/molt/internal/manifest"
)

// Pack archives the contents of dir into the archive format used for
// full releases on p: zip on Windows, gzipped tar elsewhere. Entry
// names are relative to dir and header metadata is zeroed so that
// identical trees pack to identical bytes, which keeps binary patches
// between builds small.
func Pack(dir string, p manifest.Platform) ([]byte, error) {
	if p == manifest.Win {
		return packZip(dir)
	}
	return packTarGz(dir)
}

// walkFiles returns the regular files and symlinks under dir, sorted.
func walkFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		switch info.Mode() & os.ModeType {
		case 0, os.ModeSymlink:
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}

func packTarGz(dir string) ([]byte, error) {
	files, err := walkFiles(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, file := range files {
		if err := addTarEntry(tw, dir, file); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

func addTarEntry(tw *tar.Writer, dir, file string) error {
	fi, err := os.Lstat(file)
	if err != nil {
		return err
	}

	var link string
	if fi.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(file)
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return err
	}

	hdr.Name = filepath.ToSlash(rel)
	hdr.Format = tar.FormatPAX
	hdr.Uid = 0
	hdr.Gid = 0
	hdr.Uname = ""
	hdr.Gname = ""
	hdr.ModTime = time.Time{}
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", hdr.Name, err)
	}
	if link != "" {
		return nil
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", hdr.Name, err)
	}
	return nil
}

func packZip(dir string) ([]byte, error) {
	files, err := walkFiles(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, file := range files {
		fi, err := os.Lstat(file)
		if err != nil {
			return nil, err
		}
		// Symlinks do not survive zip extraction portably.
		if !fi.Mode().IsRegular() {
			continue
		}

		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return nil, err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		hdr.Modified = time.Time{}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}

		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", hdr.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish zip stream: %w", err)
	}
	return buf.Bytes(), nil
}
