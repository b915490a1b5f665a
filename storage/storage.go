package storage

// An image as served by Moovit. Data is base64 encoded.
type Image struct {
	ID       int64
	Data     string
	MimeType string
}

// ImageStore persists images between lookups.
type ImageStore interface {
	// Retrieves the images with the given ids. Ids not in the
	// store are absent from the result.
	GetImages(ids []int64) (map[int64]Image, error)

	// Adds images to the store, replacing any with the same id.
	PutImages(images []Image) error

	// Removes all images.
	Clear() error

	Close() error
}
