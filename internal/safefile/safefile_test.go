package safefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileMax_RegularFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "slides.md")
	want := []byte("# Deck\n")
	if err := os.WriteFile(f, want, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFileMax(f, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadFileMax_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.md")
	link := filepath.Join(dir, "link.md")

	if err := os.WriteFile(target, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFileMax(link, 1024)
	if err == nil {
		t.Fatal("expected error for symlink")
	}
	if !strings.Contains(err.Error(), "symbolic link") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestReadFileMax_RejectsDirectory(t *testing.T) {
	_, err := ReadFileMax(t.TempDir(), 1024)
	if err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Errorf("expected regular-file error, got %v", err)
	}
}

func TestReadFileMax_TooLarge(t *testing.T) {
	f := filepath.Join(t.TempDir(), "big.md")
	if err := os.WriteFile(f, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFileMax(f, 50)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestReadFileMax_NonExistent(t *testing.T) {
	_, err := ReadFileMax("/nonexistent/path/abc123.md", 1024)
	if err == nil {
		t.Fatal("expected error for non-existent path")
	}
}

func TestReadAllMax(t *testing.T) {
	got, err := ReadAllMax(strings.NewReader("12345"), 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "12345" {
		t.Errorf("got %q", got)
	}

	_, err = ReadAllMax(strings.NewReader("123456"), 5)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
