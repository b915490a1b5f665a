package storage

import (
	"errors"
	"fmt"

	"github.com/bluele/gcache"
)

// MemoryImageStore keeps images in process memory.
type MemoryImageStore struct {
	cache gcache.Cache
}

// Creates an in-memory store. If maxSize is positive, the least
// recently used images are evicted beyond that many. Otherwise the
// store is unbounded.
func NewMemoryImageStore(maxSize int) *MemoryImageStore {
	var cache gcache.Cache
	if maxSize > 0 {
		cache = gcache.New(maxSize).LRU().Build()
	} else {
		cache = gcache.New(0).Simple().Build()
	}
	return &MemoryImageStore{cache: cache}
}

func (s *MemoryImageStore) GetImages(ids []int64) (map[int64]Image, error) {
	images := map[int64]Image{}
	for _, id := range ids {
		value, err := s.cache.Get(id)
		if errors.Is(err, gcache.KeyNotFoundError) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting image %d: %w", id, err)
		}
		images[id] = value.(Image)
	}
	return images, nil
}

func (s *MemoryImageStore) PutImages(images []Image) error {
	for _, image := range images {
		if err := s.cache.Set(image.ID, image); err != nil {
			return fmt.Errorf("storing image %d: %w", image.ID, err)
		}
	}
	return nil
}

func (s *MemoryImageStore) Clear() error {
	s.cache.Purge()
	return nil
}

func (s *MemoryImageStore) Close() error {
	return nil
}
