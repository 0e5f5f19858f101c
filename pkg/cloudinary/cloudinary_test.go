package cloudinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIDFromURL(t *testing.T) {
	tests := map[string]string{
		"https://res.cloudinary.com/demo/image/upload/v1712345678/salonshop/products/chair_01.jpg":               "salonshop/products/chair_01",
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_240,c_fill/salonshop/products/dryer.webp": "salonshop/products/dryer",
		"https://res.cloudinary.com/demo/image/upload/w_800/v17/salonshop/products/x.png":                        "salonshop/products/x",
		"https://res.cloudinary.com/demo/image/upload/plain":                                                     "plain",
		"https://example.com/images/chair.jpg":                                                                   "",
	}
	for url, want := range tests {
		assert.Equal(t, want, PublicIDFromURL(url), url)
	}
}

func TestBuildImageURL(t *testing.T) {
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_800,c_fill/salonshop/products/chair",
		BuildImageURL("demo", "salonshop/products/chair", 0))
	assert.Contains(t, BuildImageURL("demo", "p", ThumbWidth), "w_240")
}
