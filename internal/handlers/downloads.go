package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

// ServeDownload streams a file named by a signed local-storage token.
func ServeDownload(storage *services.LocalStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := storage.Resolve(c.Param("token"))
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Download link is invalid or has expired"})
			return
		}

		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}

		c.FileAttachment(path, filepath.Base(path))
	}
}
