// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package export

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"

	"weechatorg/internal/fileutil"
	"weechatorg/internal/models"
)

// gzipBytes compresses data as a gzip member named name. The header
// carries no modification time so identical input gives identical output.
func gzipBytes(data []byte, name string) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	zw.Name = name
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// tarEntry is a file to be added to the bundle.
type tarEntry struct {
	name    string // path inside the archive, relative to the files root
	data    []byte
	modTime time.Time
}

// visibleThemeFiles returns every *.theme file in the published themes
// directory, sorted by name. Pending themes live in a subdirectory and
// are never listed.
func visibleThemeFiles(root string) ([]tarEntry, error) {
	dir := filepath.Join(root, filepath.FromSlash(models.ThemesDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list theme files: %w", err)
	}

	var files []tarEntry
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), models.ThemeSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat theme file %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read theme file %s: %w", e.Name(), err)
		}
		files = append(files, tarEntry{
			name:    models.ThemesDir + "/" + e.Name(),
			data:    data,
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

// tarBzip2 builds a bzip2-compressed tar archive of the given entries.
func tarBzip2(entries []tarEntry) ([]byte, error) {
	var buf bytes.Buffer
	bw, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}

	tw := tar.NewWriter(bw)
	for _, e := range entries {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.data)),
			ModTime:  e.modTime.Truncate(time.Second),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("tar header %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, fmt.Errorf("tar write %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("tar close: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("bzip2 close: %w", err)
	}
	return buf.Bytes(), nil
}

// artifact is one generated output file.
type artifact struct {
	name        string
	contentType string
	data        []byte
}

// stage writes every artifact into a fresh directory under root. The
// caller removes the directory.
func stage(root string, artifacts []artifact) (string, error) {
	dir, err := os.MkdirTemp(root, ".export-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	for _, a := range artifacts {
		if err := fileutil.WriteAtomic(filepath.Join(dir, a.name), a.data, 0o644); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// previousSuffix marks the hard link to a live artifact kept in the
// staging directory while the new one is moved into place.
const previousSuffix = ".previous"

// swap moves staged artifacts over the live ones, in order. Each live file
// is first hard-linked into the staging directory; if any step fails, the
// artifacts already replaced are put back so the published set is never
// mixed.
func swap(stagingDir, root string, artifacts []artifact) error {
	var replaced []string
	for _, a := range artifacts {
		live := filepath.Join(root, a.name)
		err := os.Link(live, filepath.Join(stagingDir, a.name+previousSuffix))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			rollback(stagingDir, root, replaced)
			return fmt.Errorf("keep previous %s: %w", a.name, err)
		}
		if err := os.Rename(filepath.Join(stagingDir, a.name), live); err != nil {
			rollback(stagingDir, root, replaced)
			return fmt.Errorf("move %s into place: %w", a.name, err)
		}
		replaced = append(replaced, a.name)
	}
	fileutil.SyncDir(root)
	return nil
}

// rollback restores the previous version of each named artifact, newest
// replacement first. An artifact that had no previous version is removed.
func rollback(stagingDir, root string, names []string) {
	for i := len(names) - 1; i >= 0; i-- {
		live := filepath.Join(root, names[i])
		err := os.Rename(filepath.Join(stagingDir, names[i]+previousSuffix), live)
		if errors.Is(err, fs.ErrNotExist) {
			err = os.Remove(live)
		}
		if err != nil {
			slog.Error("restore export artifact", "artifact", names[i], "error", err)
		}
	}
	fileutil.SyncDir(root)
}
