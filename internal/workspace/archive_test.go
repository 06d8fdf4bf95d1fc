package workspace

import (
	"archive/zip"
	"io"
	"strings"
	"testing"
)

func readZipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening zip %s: %v", path, err)
	}
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading entry %s: %v", f.Name, err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

func TestArchiveRoundTrip(t *testing.T) {
	m := newTestManager(t)
	run, _ := m.CreateRun()

	files := map[string]string{
		"one.jpg":   "content one",
		"two.png":   "content two",
		"three.jpg": "content three",
	}
	for name, content := range files {
		if _, err := run.StoreInput(name, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
		if err := run.CopyInto(BucketMatched, name); err != nil {
			t.Fatal(err)
		}
	}

	zipPath, err := run.Archive(BucketMatched)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	entries := readZipEntries(t, zipPath)
	if len(entries) != len(files) {
		t.Fatalf("zip has %d entries; want %d", len(entries), len(files))
	}
	for name, content := range files {
		got, ok := entries[name]
		if !ok {
			t.Errorf("entry %s missing from zip", name)
			continue
		}
		if got != content {
			t.Errorf("entry %s content = %q; want %q", name, got, content)
		}
	}
}

func TestArchiveEmptyBucket(t *testing.T) {
	m := newTestManager(t)
	run, _ := m.CreateRun()

	zipPath, err := run.Archive(BucketNotMatched)
	if err != nil {
		t.Fatalf("Archive of empty bucket: %v", err)
	}

	entries := readZipEntries(t, zipPath)
	if len(entries) != 0 {
		t.Errorf("empty bucket zip has entries: %v", entries)
	}
}

func TestArchiveOverwrites(t *testing.T) {
	m := newTestManager(t)
	run, _ := m.CreateRun()

	if _, err := run.Archive(BucketMatched); err != nil {
		t.Fatal(err)
	}

	if _, err := run.StoreInput("late.jpg", strings.NewReader("late")); err != nil {
		t.Fatal(err)
	}
	if err := run.CopyInto(BucketMatched, "late.jpg"); err != nil {
		t.Fatal(err)
	}

	zipPath, err := run.Archive(BucketMatched)
	if err != nil {
		t.Fatal(err)
	}

	entries := readZipEntries(t, zipPath)
	if len(entries) != 1 {
		t.Fatalf("re-archive produced %d entries; want 1", len(entries))
	}
	if entries["late.jpg"] != "late" {
		t.Errorf("entry content = %q", entries["late.jpg"])
	}
}
