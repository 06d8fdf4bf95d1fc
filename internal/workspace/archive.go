package workspace

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive bundles every file currently in a bucket into a flat zip at the
// run's zip location, overwriting any previous archive. An empty bucket
// produces a valid zip with zero entries.
func (r *Run) Archive(bucket Bucket) (string, error) {
	zipPath := r.ZipPath(bucket)

	names, err := r.ListBucket(bucket)
	if err != nil {
		return "", err
	}

	out, err := os.Create(zipPath) //nolint:gosec // path is run-owned
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, name := range names {
		if err := addZipEntry(zw, filepath.Join(r.BucketDir(bucket), name), name); err != nil {
			zw.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", zipPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", zipPath, err)
	}
	return zipPath, nil
}

func addZipEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path) //nolint:gosec // path is run-owned
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("writing zip entry %s: %w", name, err)
	}
	return nil
}
