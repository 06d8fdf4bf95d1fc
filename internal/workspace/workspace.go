// Package workspace manages the isolated per-run directory trees that hold
// uploaded files and sorted results. Every run owns its own tree under the
// runs root, keyed by a UUID, so concurrent runs can never collide.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Bucket identifies one of the two output partitions of a run.
type Bucket string

const (
	BucketMatched    Bucket = "matched"
	BucketNotMatched Bucket = "not_matched"
)

const (
	targetDirName = "target_face"
	inputDirName  = "input_images"

	// TargetFileName is the canonical stored name of the target face photo.
	TargetFileName = "target.jpg"
)

// validExtensions are the accepted candidate image extensions, matched
// case-insensitively.
var validExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// HasValidExtension reports whether a filename carries an accepted image
// extension.
func HasValidExtension(name string) bool {
	_, ok := validExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Manager allocates run workspaces under a single root directory.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating runs root %s: %w", dir, err)
	}
	return &Manager{root: dir}, nil
}

// Root returns the runs root directory.
func (m *Manager) Root() string {
	return m.root
}

// RunDir returns the directory of a run by id without checking existence.
func (m *Manager) RunDir(id string) string {
	return filepath.Join(m.root, id)
}

// ZipPath returns the archive location for a run's bucket by id.
func (m *Manager) ZipPath(id string, bucket Bucket) string {
	return filepath.Join(m.root, id, string(bucket)+".zip")
}

// Run is one isolated sort execution's file tree.
type Run struct {
	ID  string
	dir string
}

// CreateRun allocates a fresh run id and its four subdirectories. Ids are
// random UUIDs, so concurrent calls cannot collide.
func (m *Manager) CreateRun() (*Run, error) {
	id := uuid.New().String()
	run := &Run{ID: id, dir: filepath.Join(m.root, id)}

	for _, dir := range []string{
		run.TargetDir(),
		run.InputDir(),
		run.BucketDir(BucketMatched),
		run.BucketDir(BucketNotMatched),
	} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating run directory %s: %w", dir, err)
		}
	}
	return run, nil
}

// Dir returns the run's root directory.
func (r *Run) Dir() string { return r.dir }

// TargetDir returns the target face slot directory.
func (r *Run) TargetDir() string { return filepath.Join(r.dir, targetDirName) }

// TargetPath returns the stored target face photo path.
func (r *Run) TargetPath() string { return filepath.Join(r.TargetDir(), TargetFileName) }

// InputDir returns the uploaded candidate images directory.
func (r *Run) InputDir() string { return filepath.Join(r.dir, inputDirName) }

// BucketDir returns a bucket's directory.
func (r *Run) BucketDir(bucket Bucket) string { return filepath.Join(r.dir, string(bucket)) }

// ZipPath returns the archive location for a bucket.
func (r *Run) ZipPath(bucket Bucket) string {
	return filepath.Join(r.dir, string(bucket)+".zip")
}

// StoreTarget writes the target face photo into its slot.
func (r *Run) StoreTarget(src io.Reader) error {
	return writeFile(r.TargetPath(), src)
}

// StoreInput writes one candidate image into the input collection under a
// normalized name and returns that name. Existing files are overwritten.
func (r *Run) StoreInput(name string, src io.Reader) (string, error) {
	stored := NormalizeFilename(name)
	if err := writeFile(filepath.Join(r.InputDir(), stored), src); err != nil {
		return "", err
	}
	return stored, nil
}

// ListInputImages enumerates candidate filenames with accepted extensions,
// sorted lexicographically.
func (r *Run) ListInputImages() ([]string, error) {
	entries, err := os.ReadDir(r.InputDir())
	if err != nil {
		return nil, fmt.Errorf("listing input images: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !HasValidExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadInput reads one candidate image by its stored name.
func (r *Run) ReadInput(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.InputDir(), filepath.Base(name))) //nolint:gosec // name confined by Base
}

// CopyInto copies a candidate image from the input collection into a
// bucket, keeping its filename. Overwrites a previous copy, so repeated
// placement of the same filename is idempotent.
func (r *Run) CopyInto(bucket Bucket, name string) error {
	name = filepath.Base(name)
	src, err := os.Open(filepath.Join(r.InputDir(), name)) //nolint:gosec // name confined by Base
	if err != nil {
		return fmt.Errorf("opening input %s: %w", name, err)
	}
	defer src.Close()

	return writeFile(filepath.Join(r.BucketDir(bucket), name), src)
}

// ListBucket enumerates a bucket's filenames, sorted lexicographically.
func (r *Run) ListBucket(bucket Bucket) ([]string, error) {
	entries, err := os.ReadDir(r.BucketDir(bucket))
	if err != nil {
		return nil, fmt.Errorf("listing bucket %s: %w", bucket, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path) //nolint:gosec // paths are built from run-owned directories
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return out.Close()
}
