package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir, "http://localhost:8080/media/")
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	resp, err := ls.Upload(ctx, &UploadRequest{
		Key:         "donations/d1/photo.jpg",
		Reader:      strings.NewReader("jpeg bytes"),
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if resp.URL != "http://localhost:8080/media/donations/d1/photo.jpg" {
		t.Errorf("URL = %s", resp.URL)
	}
	if resp.Size != int64(len("jpeg bytes")) {
		t.Errorf("Size = %d", resp.Size)
	}

	path := filepath.Join(dir, "donations", "d1", "photo.jpg")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected file on disk: %v", err)
	}

	if err := ls.Delete(ctx, "donations/d1/photo.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir(), "http://localhost/media")
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	for _, key := range []string{"", "../etc/passwd", "/abs/path", "a/../../b", `a\b`} {
		_, err := ls.Upload(context.Background(), &UploadRequest{Key: key, Reader: strings.NewReader("x")})
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Upload(%q) error = %v, expected ErrInvalidKey", key, err)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	if ext, ok := ExtensionFor("image/png"); !ok || ext != ".png" {
		t.Errorf("ExtensionFor(image/png) = %q, %v", ext, ok)
	}
	if _, ok := ExtensionFor("application/pdf"); ok {
		t.Error("Expected pdf to be rejected")
	}
}

func TestNew_UnsupportedBackend(t *testing.T) {
	if _, err := New(context.Background(), Config{Backend: "ftp"}); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
