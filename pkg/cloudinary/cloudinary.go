// Package cloudinary stores catalog product images on Cloudinary.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// ProductFolder is where catalog images live in the Cloudinary media library.
const ProductFolder = "salonshop/products"

const (
	ImageWidth = 800
	ThumbWidth = 240
)

// Upload transformations: a resized product shot plus a square thumbnail.
const imageEager = "q_auto,f_auto,w_800,c_limit|q_auto,f_auto,w_240,h_240,c_fill"

type Image struct {
	URL          string
	ThumbnailURL string
	PublicID     string
}

// ImageStore is what the catalog needs from an image host.
type ImageStore interface {
	UploadImage(ctx context.Context, file io.Reader, publicID string) (*Image, error)
	Delete(ctx context.Context, publicID string) error
}

// BuildImageURL returns a delivery URL resized to width.
func BuildImageURL(cloudName, publicID string, width int) string {
	if width <= 0 {
		width = ImageWidth
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,c_fill/%s",
		cloudName, width, publicID)
}

// PublicIDFromURL recovers the public id from a Cloudinary delivery URL, dropping
// transformations, the version segment and the file extension. It returns "" for
// URLs that are not Cloudinary uploads.
func PublicIDFromURL(url string) string {
	const marker = "/upload/"
	i := strings.Index(url, marker)
	if i < 0 {
		return ""
	}
	parts := strings.Split(url[i+len(marker):], "/")
	start := 0
	for start < len(parts)-1 && isTransform(parts[start]) {
		start++
	}
	if start < len(parts)-1 && isVersion(parts[start]) {
		start++
	}
	id := strings.Join(parts[start:], "/")
	if dot := strings.LastIndex(id, "."); dot > strings.LastIndex(id, "/") {
		id = id[:dot]
	}
	return id
}

// isTransform matches segments such as "w_240" or "q_auto,f_auto,c_fill".
func isTransform(seg string) bool {
	for _, p := range strings.Split(seg, ",") {
		i := strings.IndexByte(p, '_')
		if i < 1 || i > 3 {
			return false
		}
		for _, r := range p[:i] {
			if r < 'a' || r > 'z' {
				return false
			}
		}
	}
	return true
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var eagerAsyncFalse = false

type client struct {
	cloudName string
	uploader  *uploader.API
}

// UploadImage uploads a product image into ProductFolder.
func (c *client) UploadImage(ctx context.Context, file io.Reader, publicID string) (*Image, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     ProductFolder,
		PublicID:   publicID,
		Eager:      imageEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	img := &Image{URL: result.SecureURL, PublicID: result.PublicID}
	if len(result.Eager) > 1 {
		img.URL = result.Eager[0].SecureURL
		img.ThumbnailURL = result.Eager[1].SecureURL
	}
	if img.ThumbnailURL == "" {
		img.ThumbnailURL = BuildImageURL(c.cloudName, result.PublicID, ThumbWidth)
	}
	return img, nil
}

func (c *client) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary: %s", res.Error.Message)
	}
	return nil
}

// NewClientFromParams builds an ImageStore from the cloud name, API key and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (ImageStore, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &client{cloudName: cloudName, uploader: up}, nil
}
