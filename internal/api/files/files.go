// Package files serves stored objects when the local storage backend is in
// use. Cloud backends hand out their own URLs and never route here.
package files

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/storage"
)

// ServeFileHandler streams an object from storage.
// Implements: GET /api/v1/files/*filepath
func ServeFileHandler(store storage.Storage, cacheControl string) gin.HandlerFunc {
	return func(c *gin.Context) {
		filePath := strings.TrimPrefix(c.Param("filepath"), "/")
		if filePath == "" || strings.Contains(filePath, "..") {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid file path",
			})
			return
		}

		ctx := c.Request.Context()
		metadata, err := store.GetMetadata(ctx, filePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get file metadata",
			})
			return
		}

		reader, err := store.Download(ctx, filePath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to read file",
			})
			return
		}
		defer reader.Close()

		headers := map[string]string{
			"X-Checksum-SHA256": metadata.Checksum,
			"ETag":              `"` + metadata.Checksum + `"`,
		}
		if cacheControl != "" {
			headers["Cache-Control"] = cacheControl
		}
		contentType := metadata.ContentType
		if contentType == "" {
			contentType = storage.ContentTypeFor(filePath)
		}
		c.DataFromReader(http.StatusOK, metadata.Size, contentType, reader, headers)
	}
}
