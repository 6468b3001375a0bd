// Package backup writes and restores tar.gz archives of the data directory.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Prefix names every archive created by Create.
const Prefix = "qsched_backup_"

// Info describes an archive in the backup directory
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// FileName returns the archive name for a backup taken at t. A non-empty
// tag is inserted before the timestamp.
func FileName(tag string, t time.Time) string {
	if tag != "" {
		tag += "_"
	}
	return fmt.Sprintf("%s%s%s.tar.gz", Prefix, tag, t.Format("20060102_150405"))
}

// Create archives sourceDir into targetFile. Entry names are relative to the
// parent of sourceDir. Directories named in skip are left out.
func Create(sourceDir, targetFile string, skip ...string) (err error) {
	outFile, err := os.Create(targetFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = true
	}

	walkErr := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && skipped[filepath.Clean(path)] {
			return filepath.SkipDir
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(filepath.Dir(sourceDir), path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tarWriter, file)
		return err
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzWriter.Close()
}

// Extract unpacks sourceFile under targetDir. Entries that would land
// outside targetDir are rejected.
func Extract(sourceFile, targetDir string) error {
	file, err := os.Open(sourceFile)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	root := filepath.Clean(targetDir) + string(os.PathSeparator)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target := filepath.Join(targetDir, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes %s", header.Name, targetDir)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
				return err
			}
			if err := writeFile(target, tarReader, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0600
	}
	outFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return err
	}
	return outFile.Close()
}

// List returns the archives in dir, newest first
func List(dir string) ([]Info, error) {
	files, err := filepath.Glob(filepath.Join(dir, Prefix+"*.tar.gz"))
	if err != nil {
		return nil, err
	}

	backups := make([]Info, 0, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:    filepath.Base(file),
			Path:    file,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// Cleanup removes archives in dir older than retentionDays before now
func Cleanup(dir string, retentionDays int, now time.Time) (int, error) {
	backups, err := List(dir)
	if err != nil {
		return 0, err
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, b := range backups {
		if b.ModTime.Before(cutoff) {
			if err := os.Remove(b.Path); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// FormatAge renders d as a coarse age ("today", "3 days", "2 weeks")
func FormatAge(d time.Duration) string {
	days := int(d.Hours() / 24)

	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 30:
		if weeks := days / 7; weeks > 1 {
			return fmt.Sprintf("%d weeks", weeks)
		}
		return "1 week"
	default:
		if months := days / 30; months > 1 {
			return fmt.Sprintf("%d months", months)
		}
		return "1 month"
	}
}
