package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawAd(t *testing.T, src string) RawAd {
	t.Helper()
	var ad RawAd
	require.NoError(t, json.Unmarshal([]byte(src), &ad))
	return ad
}

func TestRawAdFieldAliases(t *testing.T) {
	camel := rawAd(t, `{
		"pageId": "123",
		"adArchiveId": "777",
		"isActive": true,
		"snapshot": {"page_name": "Tienda MX", "link_url": "https://shop.example.com/p/1"}
	}`)
	assert.Equal(t, "123", camel.PageID())
	assert.Equal(t, "777", camel.AdArchiveID())
	assert.True(t, camel.IsActive())
	assert.Equal(t, "Tienda MX", camel.PageName())
	assert.Equal(t, "shop.example.com", camel.Domain())

	snake := rawAd(t, `{"page_id": "456", "ad_archive_id": "888", "is_active": false}`)
	assert.Equal(t, "456", snake.PageID())
	assert.Equal(t, "888", snake.AdArchiveID())
	assert.False(t, snake.IsActive())
}

func TestRawAdNumericIDsNotScientific(t *testing.T) {
	ad := rawAd(t, `{"pageId": 101363361465902, "adArchiveId": 874216274202198}`)
	assert.Equal(t, "101363361465902", ad.PageID())
	assert.Equal(t, "874216274202198", ad.AdArchiveID())
}

func TestRawAdPageIDFallsBackToName(t *testing.T) {
	ad := rawAd(t, `{"pageName": "Sin ID Store"}`)
	assert.Equal(t, "unknown_Sin ID Store", ad.PageID())

	empty := rawAd(t, `{}`)
	assert.Equal(t, "", empty.PageID())
}

func TestContentHashPureFunction(t *testing.T) {
	src := `{
		"snapshot": {
			"body": {"text": "Envio gratis"},
			"title": "Crema Facial",
			"link_url": "https://example.com",
			"images": [{"original_image_url": "https://cdn/a.jpg"}]
		}
	}`
	a := rawAd(t, src)
	b := rawAd(t, src)
	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.Len(t, a.ContentHash(), 40)

	changed := rawAd(t, `{
		"snapshot": {
			"body": {"text": "Envio gratis HOY"},
			"title": "Crema Facial",
			"link_url": "https://example.com",
			"images": [{"original_image_url": "https://cdn/a.jpg"}]
		}
	}`)
	assert.NotEqual(t, a.ContentHash(), changed.ContentHash())
}

func TestImageURLPrecedence(t *testing.T) {
	ad := rawAd(t, `{
		"snapshot": {
			"images": [{"resized_image_url": "https://cdn/resized.jpg", "original_image_url": "https://cdn/orig.jpg"}],
			"videos": [{"video_preview_image_url": "https://cdn/thumb.jpg"}],
			"cards": [{"original_image_url": "https://cdn/card.jpg"}]
		}
	}`)
	assert.Equal(t, []string{"https://cdn/resized.jpg"}, ad.ImageURLs(1))
	assert.Equal(t, []string{
		"https://cdn/resized.jpg",
		"https://cdn/thumb.jpg",
		"https://cdn/card.jpg",
	}, ad.ImageURLs(5))
}

func TestImageURLsVideoThumbnailWhenNoImages(t *testing.T) {
	ad := rawAd(t, `{
		"snapshot": {"videos": [{"video_preview_image_url": "https://cdn/thumb.jpg"}]}
	}`)
	assert.Equal(t, []string{"https://cdn/thumb.jpg"}, ad.ImageURLs(1))
}

func TestImageURLsDedup(t *testing.T) {
	ad := rawAd(t, `{
		"snapshot": {
			"images": [
				{"resized_image_url": "https://cdn/a.jpg"},
				{"resized_image_url": "https://cdn/a.jpg"},
				{"resized_image_url": "https://cdn/b.jpg"}
			]
		}
	}`)
	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, ad.ImageURLs(5))
}
