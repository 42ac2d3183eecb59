package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wagate/internal/engine"
)

const defaultDocumentMime = "application/octet-stream"

// BuildMediaMessage reads the stored media file and shapes it into an engine
// message by MIME prefix: image/* and video/* get media shapes, everything
// else travels as a document carrying the literal MIME type and filename.
func BuildMediaMessage(filePath, caption, mimeType string) (engine.Message, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return engine.Message{}, fmt.Errorf("%w: %s: %v", ErrMediaUnreadable, filePath, err)
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return engine.Message{
			Kind:    engine.KindImage,
			Data:    data,
			Caption: caption,
		}, nil
	case strings.HasPrefix(mimeType, "video/"):
		return engine.Message{
			Kind:    engine.KindVideo,
			Data:    data,
			Caption: caption,
		}, nil
	case mimeType == "application/pdf":
		return engine.Message{
			Kind:     engine.KindDocument,
			Data:     data,
			Caption:  caption,
			MimeType: "application/pdf",
			FileName: filepath.Base(filePath),
		}, nil
	default:
		mime := strings.TrimSpace(mimeType)
		if mime == "" {
			mime = defaultDocumentMime
		}
		return engine.Message{
			Kind:     engine.KindDocument,
			Data:     data,
			Caption:  caption,
			MimeType: mime,
			FileName: filepath.Base(filePath),
		}, nil
	}
}
