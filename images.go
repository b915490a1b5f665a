package moovit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dortort/moovit-client/storage"
)

// TransitImage is a line or agency icon. Data is base64 encoded.
type TransitImage = storage.Image

const defaultImageMimeType = "image/png"

var imageMimeTypes = map[int]string{
	1: "image/png",
	2: "image/jpeg",
	3: "image/gif",
	4: "image/svg+xml",
}

type rawImage struct {
	ID        int64  `json:"id"`
	ImageData string `json:"imageData"`
	MimeType  string `json:"mimeType"`
	Entity    *struct {
		Image *struct {
			ImageID   int64  `json:"imageId"`
			ImageData string `json:"imageData"`
			ImageType int    `json:"imageType"`
		} `json:"image"`
	} `json:"entity"`
}

func (r *rawImage) image() TransitImage {
	if r.Entity != nil && r.Entity.Image != nil {
		mimeType, found := imageMimeTypes[r.Entity.Image.ImageType]
		if !found {
			mimeType = defaultImageMimeType
		}
		return TransitImage{
			ID:       r.Entity.Image.ImageID,
			Data:     r.Entity.Image.ImageData,
			MimeType: mimeType,
		}
	}

	image := TransitImage{ID: r.ID, Data: r.ImageData, MimeType: r.MimeType}
	if image.MimeType == "" {
		image.MimeType = defaultImageMimeType
	}
	return image
}

// imageCache fetches images, asking the API only for those not
// already in the store.
type imageCache struct {
	api   *api
	store storage.ImageStore
}

func (c *imageCache) images(ctx context.Context, ids []int64) ([]TransitImage, error) {
	cached, err := c.store.GetImages(ids)
	if err != nil {
		return nil, fmt.Errorf("reading image store: %w", err)
	}

	uncached := []string{}
	seen := map[int64]bool{}
	for _, id := range ids {
		if _, found := cached[id]; found || seen[id] {
			continue
		}
		seen[id] = true
		uncached = append(uncached, strconv.FormatInt(id, 10))
	}

	if len(uncached) > 0 {
		fetched, err := c.fetch(ctx, uncached)
		if err != nil {
			return nil, err
		}
		if err := c.store.PutImages(fetched); err != nil {
			return nil, fmt.Errorf("writing image store: %w", err)
		}
		for _, image := range fetched {
			cached[image.ID] = image
		}
	}

	result := make([]TransitImage, 0, len(ids))
	for _, id := range ids {
		if image, found := cached[id]; found {
			result = append(result, image)
		}
	}
	return result, nil
}

func (c *imageCache) fetch(ctx context.Context, ids []string) ([]TransitImage, error) {
	var data json.RawMessage
	query := url.Values{"ids": {strings.Join(ids, ",")}}
	if err := c.api.getJSON(ctx, "/image", query, &data); err != nil {
		return nil, err
	}

	var raw []rawImage
	if err := unwrapList(data, "", &raw); err != nil {
		return nil, fmt.Errorf("decoding images: %w", err)
	}

	images := make([]TransitImage, 0, len(raw))
	for i := range raw {
		images = append(images, raw[i].image())
	}
	return images, nil
}

// Images returns the images with the given ids, in the same order.
// Images the API doesn't have are left out.
func (c *Client) Images(ctx context.Context, ids []int64) ([]TransitImage, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.images.images(ctx, ids)
}

// Image returns a single image, or nil if there's no such image.
func (c *Client) Image(ctx context.Context, id int64) (*TransitImage, error) {
	images, err := c.Images(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	return &images[0], nil
}

// ClearImageCache drops all cached images.
func (c *Client) ClearImageCache() error {
	return c.store.Clear()
}
