package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// SQLiteImageStore keeps images in SQLite, either in memory or in
// Directory/moovit.db.
type SQLiteImageStore struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteImageStore(cfg ...SQLiteConfig) (*SQLiteImageStore, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/moovit.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a separate database
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS image (
    id INTEGER NOT NULL,
    data TEXT NOT NULL,
    mime_type TEXT NOT NULL,
PRIMARY KEY (id)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating image table: %w", err)
	}

	return &SQLiteImageStore{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteImageStore) GetImages(ids []int64) (map[int64]Image, error) {
	images := map[int64]Image{}
	if len(ids) == 0 {
		return images, nil
	}

	placeholders := make([]string, 0, len(ids))
	params := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		params = append(params, id)
	}

	rows, err := s.db.Query(`
SELECT id, data, mime_type
FROM image
WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, params...)
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

func (s *SQLiteImageStore) PutImages(images []Image) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO image (id, data, mime_type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, image := range images {
		if _, err := stmt.Exec(image.ID, image.Data, image.MimeType); err != nil {
			return fmt.Errorf("inserting image %d: %w", image.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *SQLiteImageStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM image`); err != nil {
		return fmt.Errorf("clearing images: %w", err)
	}
	return nil
}

func (s *SQLiteImageStore) Close() error {
	return s.db.Close()
}
