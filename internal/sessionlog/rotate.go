package sessionlog

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
)

// RotateOlderThan zips every Logs/YYYY-MM-DD directory older than
// cutoff into Logs/YYYY-MM-DD.zip and removes the source directory,
// matching the rotated-log layout named in spec.md §6. archive/zip is
// registered with klauspost/compress's deflate implementation, the
// same "faster drop-in codec" role klauspost/pgzip plays in the
// teacher's go.mod (pgzip itself has no entry point here: zip entries
// are DEFLATE, not gzip streams).
func RotateOlderThan(logsDir string, cutoff time.Time) error {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read logs directory: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		day, err := time.ParseInLocation("2006-01-02", e.Name(), time.UTC)
		if err != nil {
			continue // not a dated log directory, ignore
		}

		if !day.Before(cutoff) {
			continue
		}

		dir := filepath.Join(logsDir, e.Name())
		if err := zipDirectory(dir, dir+".zip"); err != nil {
			return fmt.Errorf("rotate %s: %w", dir, err)
		}

		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove rotated directory %s: %w", dir, err)
		}
	}

	return nil
}

func zipDirectory(srcDir, destZip string) error {
	tmp := destZip + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(w, src)

		return err
	})

	if walkErr != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)

		return walkErr
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)

		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, destZip)
}
