package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relaytransfer/relay/pkg/protocol"
)

func TestSanitizeRelativePathAcceptsNormalPaths(t *testing.T) {
	got, err := SanitizeRelativePath("docs/report.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "docs/report.pdf" {
		t.Fatalf("expected unchanged path, got %q", got)
	}
}

func TestSanitizeRelativePathRejectsParentTraversal(t *testing.T) {
	cases := []string{"../etc/passwd", "docs/../../etc/passwd", ".."}
	for _, c := range cases {
		if _, err := SanitizeRelativePath(c); err == nil {
			t.Errorf("expected rejection of %q", c)
		}
	}
}

func TestSanitizeRelativePathRejectsAbsolute(t *testing.T) {
	if _, err := SanitizeRelativePath("/etc/passwd"); err == nil {
		t.Fatal("expected rejection of absolute path")
	}
}

func TestSanitizeRelativePathRejectsControlCharacters(t *testing.T) {
	if _, err := SanitizeRelativePath("docs/report\x00.pdf"); err == nil {
		t.Fatal("expected rejection of NUL byte")
	}
	if _, err := SanitizeRelativePath("docs/report\n.pdf"); err == nil {
		t.Fatal("expected rejection of control character")
	}
}

func TestSanitizeRelativePathAllowsEmpty(t *testing.T) {
	got, err := SanitizeRelativePath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty path preserved, got %q", got)
	}
}

func TestSanitizeOfferRejectsWholeOfferOnOneBadEntry(t *testing.T) {
	files := []protocol.FileDescriptor{
		{Name: "a.txt", RelativePath: "a.txt"},
		{Name: "b.txt", RelativePath: "../b.txt"},
	}
	if err := SanitizeOffer(files); err == nil {
		t.Fatal("expected the whole offer to be rejected")
	}
}

func TestDestinationPathJoinsUnderSaveDir(t *testing.T) {
	dest, err := DestinationPath("/save", protocol.FileDescriptor{Name: "f.txt", RelativePath: "sub/f.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join("/save", "sub", "f.txt")
	if dest != want {
		t.Fatalf("expected %q, got %q", want, dest)
	}
}

func TestDestinationPathFallsBackToName(t *testing.T) {
	dest, err := DestinationPath("/save", protocol.FileDescriptor{Name: "f.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest != filepath.Join("/save", "f.txt") {
		t.Fatalf("expected name-only join, got %q", dest)
	}
}

func TestBuildFileListSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := BuildFileList([]string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].Size != 5 || files[0].RelativePath != "" {
		t.Fatalf("unexpected descriptor: %+v", files)
	}
}

func TestBuildFileListDirectoryWalk(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "folder")
	if err := os.MkdirAll(filepath.Join(root, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "nested", "b.txt"), []byte("bb"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := BuildFileList([]string{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(files))
	}
	for _, f := range files {
		if f.RelativePath == "" {
			t.Errorf("expected non-empty relative path for %+v", f)
		}
	}
}
