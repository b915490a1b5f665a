package moovit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dortort/moovit-client/storage"
	"github.com/dortort/moovit-client/testutil"
)

// Serves images for any requested id below 100, in the nested form
// for even ids and the flat form for odd ones.
func serveImages(api *testutil.FakeAPI) {
	api.Handle("GET", "/image", func(w http.ResponseWriter, r *http.Request) {
		items := []jsonObj{}
		for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
			id, err := strconv.Atoi(s)
			if err != nil || id >= 100 {
				continue
			}
			if id%2 == 0 {
				items = append(items, jsonObj{"entity": jsonObj{"image": jsonObj{
					"imageId":   id,
					"imageData": "data-" + s,
					"imageType": id / 2 % 5,
				}}})
			} else {
				items = append(items, jsonObj{"id": id, "imageData": "data-" + s})
			}
		}
		writeJSON(w, items)
	})
}

func requestedImageIDs(api *testutil.FakeAPI) []string {
	ids := []string{}
	for _, req := range api.Requests("/image") {
		ids = append(ids, req.Query.Get("ids"))
	}
	return ids
}

func TestImagesCache(t *testing.T) {
	c, api, _ := newTestClient(t, Config{})
	serveImages(api)
	ctx := context.Background()

	images, err := c.Images(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, len(images))
	assert.Equal(t, TransitImage{ID: 1, Data: "data-1", MimeType: "image/png"}, images[0])
	assert.Equal(t, TransitImage{ID: 2, Data: "data-2", MimeType: "image/png"}, images[1])

	// Only 3 is fetched
	images, err = c.Images(ctx, []int64{2, 3})
	require.NoError(t, err)
	require.Equal(t, 2, len(images))
	assert.Equal(t, int64(2), images[0].ID)
	assert.Equal(t, int64(3), images[1].ID)
	assert.Equal(t, []string{"1,2", "3"}, requestedImageIDs(api))

	// Fully cached, no request
	_, err = c.Images(ctx, []int64{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, len(api.Requests("/image")))

	// Clearing forces a refetch
	require.NoError(t, c.ClearImageCache())
	_, err = c.Images(ctx, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1,2", "3", "2"}, requestedImageIDs(api))
}

func TestImagesOrderAndMissing(t *testing.T) {
	c, api, _ := newTestClient(t, Config{})
	serveImages(api)

	images, err := c.Images(context.Background(), []int64{5, 500, 4, 5})
	require.NoError(t, err)

	ids := []int64{}
	for _, image := range images {
		ids = append(ids, image.ID)
	}
	assert.Equal(t, []int64{5, 4, 5}, ids)

	// Duplicates requested once
	assert.Equal(t, []string{"5,500,4"}, requestedImageIDs(api))
}

func TestImagesMimeTypes(t *testing.T) {
	c, api, _ := newTestClient(t, Config{})
	serveImages(api)

	// Even ids use imageType id/2%5: 2->1, 4->2, 6->3, 8->4, 10->0
	images, err := c.Images(context.Background(), []int64{2, 4, 6, 8, 10})
	require.NoError(t, err)
	require.Equal(t, 5, len(images))
	assert.Equal(t, "image/png", images[0].MimeType)
	assert.Equal(t, "image/jpeg", images[1].MimeType)
	assert.Equal(t, "image/gif", images[2].MimeType)
	assert.Equal(t, "image/svg+xml", images[3].MimeType)
	assert.Equal(t, "image/png", images[4].MimeType)

	// Flat form keeps its own mime type
	api.JSON("GET", "/image", 200, []jsonObj{{"id": 200, "imageData": "x", "mimeType": "image/webp"}})
	image, err := c.Image(context.Background(), 200)
	require.NoError(t, err)
	require.NotNil(t, image)
	assert.Equal(t, "image/webp", image.MimeType)
}

func TestImageSingle(t *testing.T) {
	c, api, _ := newTestClient(t, Config{})
	serveImages(api)

	image, err := c.Image(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, image)
	assert.Equal(t, "data-7", image.Data)

	image, err = c.Image(context.Background(), 700)
	require.NoError(t, err)
	assert.Nil(t, image)
}

func TestImagesBoundedCache(t *testing.T) {
	c, api, _ := newTestClient(t, Config{MaxCachedImages: 2})
	serveImages(api)
	ctx := context.Background()

	_, err := c.Images(ctx, []int64{1, 3, 5})
	require.NoError(t, err)

	// 1 was evicted
	_, err = c.Images(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []string{"1,3,5", "1"}, requestedImageIDs(api))
}

func TestImagesCustomStore(t *testing.T) {
	store, err := storage.NewSQLiteImageStore()
	require.NoError(t, err)
	require.NoError(t, store.PutImages([]storage.Image{{ID: 1, Data: "stored", MimeType: "image/gif"}}))

	c, api, _ := newTestClient(t, Config{ImageStore: store})
	serveImages(api)

	images, err := c.Images(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, len(images))
	assert.Equal(t, "stored", images[0].Data)
	assert.Equal(t, "data-2", images[1].Data)
	assert.Equal(t, []string{"2"}, requestedImageIDs(api))

	stored, err := store.GetImages([]int64{2})
	require.NoError(t, err)
	assert.Equal(t, "data-2", stored[2].Data)
}
