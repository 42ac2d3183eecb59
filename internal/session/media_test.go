package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wagate/internal/engine"
	"wagate/internal/testutil/testlog"
)

func writeMediaFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return path
}

func TestBuildMediaMessageShapesByMime(t *testing.T) {
	testlog.Start(t)
	payload := []byte{0x89, 0x50, 0x4e, 0x47}

	t.Run("image", func(t *testing.T) {
		path := writeMediaFile(t, "photo.png", payload)
		msg, err := BuildMediaMessage(path, "a caption", "image/png")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if msg.Kind != engine.KindImage || msg.Caption != "a caption" || msg.FileName != "" {
			t.Fatalf("unexpected image message: %+v", msg)
		}
		if string(msg.Data) != string(payload) {
			t.Fatalf("payload mismatch")
		}
	})

	t.Run("video", func(t *testing.T) {
		path := writeMediaFile(t, "clip.mp4", payload)
		msg, err := BuildMediaMessage(path, "", "video/mp4")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if msg.Kind != engine.KindVideo {
			t.Fatalf("unexpected kind: %q", msg.Kind)
		}
	})

	t.Run("pdf document keeps filename", func(t *testing.T) {
		path := writeMediaFile(t, "invoice.pdf", payload)
		msg, err := BuildMediaMessage(path, "", "application/pdf")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if msg.Kind != engine.KindDocument || msg.MimeType != "application/pdf" {
			t.Fatalf("unexpected document message: %+v", msg)
		}
		if msg.FileName != "invoice.pdf" {
			t.Fatalf("unexpected filename: %q", msg.FileName)
		}
	})

	t.Run("unknown mime falls back to document", func(t *testing.T) {
		path := writeMediaFile(t, "data.bin", payload)
		msg, err := BuildMediaMessage(path, "", "")
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if msg.Kind != engine.KindDocument || msg.MimeType != defaultDocumentMime {
			t.Fatalf("unexpected fallback message: %+v", msg)
		}
		if msg.FileName != "data.bin" {
			t.Fatalf("unexpected filename: %q", msg.FileName)
		}
	})
}

func TestBuildMediaMessageUnreadableFile(t *testing.T) {
	testlog.Start(t)
	missing := filepath.Join(t.TempDir(), "absent.png")
	if _, err := BuildMediaMessage(missing, "", "image/png"); !errors.Is(err, ErrMediaUnreadable) {
		t.Fatalf("expected ErrMediaUnreadable, got %v", err)
	}
}
