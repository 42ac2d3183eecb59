package gateway

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
)

// storeUpload persists an uploaded file under the media directory with a
// millisecond-timestamp prefix so repeated uploads of the same filename
// never collide.
func (s *Server) storeUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
	dest := filepath.Join(s.cfg.MediaDir, name)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", err
	}
	return dest, nil
}
