package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"swapmarket/internal/media/sniffer"
	"swapmarket/internal/service"
)

// maxImageBytes bounds a single item photo.
const maxImageBytes = 10 << 20

func (h HandlerSet) UploadItemImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+1<<20)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}

	primary, _ := strconv.ParseBool(c.PostForm("primary"))
	item, err := h.items.AddImage(c.Request.Context(), id, user, service.ImageUpload{
		Body:         file,
		Size:         header.Size,
		DeclaredType: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
		Primary:      primary,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": newItemResponse(item)})
}
