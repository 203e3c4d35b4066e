package handler

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// maxCoverBytes caps cover image uploads at 5 MB.
const maxCoverBytes = 5 << 20

// Upload handles POST /api/uploads. kind selects the validation rules:
// "cover" must be a decodable image no larger than 5 MB, "audio" only
// needs an audio MIME type. The file lands in object storage and the
// public URL comes back for use in a post.
func (a *API) Upload(c *gin.Context) {
	if a.media == nil {
		respondError(c, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	kind := c.DefaultPostForm("kind", "cover")
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "no file in request")
		return
	}

	contentType := file.Header.Get("Content-Type")
	switch kind {
	case "cover":
		if !strings.HasPrefix(contentType, "image/") {
			respondError(c, http.StatusBadRequest, "cover must be an image")
			return
		}
		if file.Size > maxCoverBytes {
			respondError(c, http.StatusBadRequest, "image exceeds 5 MB limit")
			return
		}
	case "audio":
		if !strings.HasPrefix(contentType, "audio/") {
			respondError(c, http.StatusBadRequest, "audio must be an audio file")
			return
		}
	default:
		respondError(c, http.StatusBadRequest, "unknown upload kind")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "read upload")
		return
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		respondError(c, http.StatusInternalServerError, "read upload")
		return
	}

	if kind == "cover" {
		// MIME headers are client-supplied; make sure the bytes decode.
		if _, _, err := image.DecodeConfig(bytes.NewReader(buf.Bytes())); err != nil {
			respondError(c, http.StatusBadRequest, "file is not a valid image")
			return
		}
	}

	key := fmt.Sprintf("%s/%s-%s%s",
		kind,
		time.Now().Format("20060102"),
		uuid.NewString(),
		filepath.Ext(file.Filename))

	publicURL, err := a.media.Upload(c.Request.Context(), key, buf.Bytes(), contentType)
	if err != nil {
		a.log.Error("upload to object storage", zap.Error(err))
		respondError(c, http.StatusBadGateway, "upload failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": publicURL})
}
