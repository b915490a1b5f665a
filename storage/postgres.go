package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

type PSQLImageStore struct {
	db *sql.DB
}

// Creates a new Postgres image store using the provided connection
// string.
//
// If clearDB is true, the image table will be dropped on startup. You
// probably only want this for testing.
func NewPSQLImageStore(connStr string, clearDB bool) (*PSQLImageStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		if _, err := db.Exec(`DROP TABLE IF EXISTS image;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS image (
    id BIGINT NOT NULL,
    data TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    PRIMARY KEY (id)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating image table: %w", err)
	}

	return &PSQLImageStore{db: db}, nil
}

func (s *PSQLImageStore) GetImages(ids []int64) (map[int64]Image, error) {
	images := map[int64]Image{}
	if len(ids) == 0 {
		return images, nil
	}

	rows, err := s.db.Query(`
SELECT id, data, mime_type
FROM image
WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var image Image
		if err := rows.Scan(&image.ID, &image.Data, &image.MimeType); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		images[image.ID] = image
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}

	return images, nil
}

func (s *PSQLImageStore) PutImages(images []Image) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, image := range images {
		_, err := tx.Exec(`
INSERT INTO image (id, data, mime_type)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, mime_type = EXCLUDED.mime_type`,
			image.ID, image.Data, image.MimeType)
		if err != nil {
			return fmt.Errorf("inserting image %d: %w", image.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *PSQLImageStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM image`); err != nil {
		return fmt.Errorf("clearing images: %w", err)
	}
	return nil
}

func (s *PSQLImageStore) Close() error {
	return s.db.Close()
}
