package ginserver

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"recipehub/internal/infra/storage/s3"
)

const maxImageBytes = 10 << 20

type MediaHTTP interface {
	UploadImage(c *gin.Context)
}

// MediaHandler stores images that image messages later reference by URL.
type MediaHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
	Now      func() time.Time
}

type uploadImageResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (h MediaHandler) UploadImage(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		respondError(c, h.Logger, s3.ErrNotConfigured, "upload image")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 10MB"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	key, err := s3.ImageKey(user.ID, contentType, h.now())
	if err != nil {
		respondError(c, h.Logger, err, "upload image")
		return
	}
	body := io.MultiReader(bytes.NewReader(head), file)
	url, err := h.Uploader.Upload(c.Request.Context(), key, body, fileHeader.Size, contentType)
	if err != nil {
		respondError(c, h.Logger, err, "upload image", "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, uploadImageResponse{URL: url, ContentType: contentType, Size: fileHeader.Size})
}

func (h MediaHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var _ MediaHTTP = MediaHandler{}
