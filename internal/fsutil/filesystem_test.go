package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_AtomicWriteAndReadDir(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "classification_1985.tif")

	if err := WriteFileAtomic(fsys, path, []byte("band"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if fsys.Exists(path + ".tmp") {
		t.Error("temporary file left behind")
	}

	names, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 1 || names[0] != "classification_1985.tif" {
		t.Errorf("ReadDir = %v", names)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "band" {
		t.Errorf("got %q, want %q", data, "band")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// The returned slice is a copy.
	data[0] = 'H'
	again, _ := mfs.ReadFile("/test.txt")
	if again[0] != 'h' {
		t.Error("ReadFile exposed internal storage")
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/a/b.bin", []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := mfs.Open("/a/b.bin")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("got %q", data)
	}
	info, err := f.Stat()
	if err != nil || info.Size() != 3 || info.Name() != "b.bin" {
		t.Errorf("Stat = %v, %v", info, err)
	}

	if _, err := mfs.Open("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/x.tmp", []byte("1"), 0o644)

	if err := mfs.Rename("/x.tmp", "/x"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/x.tmp") || !mfs.Exists("/x") {
		t.Error("rename did not move the file")
	}
	if err := mfs.Rename("/nope", "/y"); err == nil {
		t.Error("expected error renaming a missing file")
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/stack/sub", 0o755)
	_ = mfs.WriteFile("/stack/b.tif", nil, 0o644)
	_ = mfs.WriteFile("/stack/a.tif", nil, 0o644)
	_ = mfs.WriteFile("/stack/sub/c.tif", nil, 0o644)

	names, err := mfs.ReadDir("/stack")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.tif" || names[1] != "b.tif" {
		t.Errorf("ReadDir = %v", names)
	}

	empty, err := mfs.ReadDir("/stack/sub/none")
	if err == nil {
		t.Errorf("expected error for unknown dir, got %v", empty)
	}
	if !mfs.Exists("/stack") {
		t.Error("MkdirAll parent not recorded")
	}
}

func TestWriteFileAtomic_FailureLeavesNoFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.FailWrites = "broken"

	if err := WriteFileAtomic(mfs, "/out/broken.tif", []byte("x"), 0o644); err == nil {
		t.Fatal("expected error")
	}
	if mfs.Exists("/out/broken.tif") || mfs.Exists("/out/broken.tif.tmp") {
		t.Error("failed write left a file behind")
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/r", []byte("1"), 0o644)
	if err := mfs.Remove("/r"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := mfs.Remove("/r"); err == nil {
		t.Error("expected error removing twice")
	}
}
