package handler

import (
	"net/http"
	"strings"

	"salonshop/internal/repository"
	"salonshop/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxImageSize = 5 << 20

type UploadHandler struct {
	images   cloudinary.ImageStore
	products *repository.ProductRepository
}

func NewUploadHandler(images cloudinary.ImageStore, products *repository.ProductRepository) *UploadHandler {
	return &UploadHandler{images: images, products: products}
}

// UploadProductImage replaces a product's picture. The previous image is removed
// from Cloudinary once the product row points at the new one.
func (h *UploadHandler) UploadProductImage(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image uploads are not configured"})
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	p, err := h.products.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be 5MB or smaller"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	publicID := "img_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	img, err := h.images.UploadImage(c.Request.Context(), f, publicID)
	if err != nil {
		log.Error().Err(err).Uint("product_id", id).Msg("[UPLOAD] cloudinary upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	previous := cloudinary.PublicIDFromURL(p.ImageURL)
	p.ImageURL = img.URL
	p.ThumbnailURL = img.ThumbnailURL
	if err := h.products.Update(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if previous != "" && previous != img.PublicID {
		if err := h.images.Delete(c.Request.Context(), previous); err != nil {
			log.Warn().Err(err).Str("public_id", previous).Msg("[UPLOAD] old image not removed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"image_url": img.URL, "thumbnail_url": img.ThumbnailURL})
}
