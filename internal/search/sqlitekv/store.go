// Package sqlitekv is a bleve key/value store kept in a SQLite database.
//
// Rows live in a single table ordered by key. Readers run inside their own
// transaction so they see a stable snapshot while writers commit.
package sqlitekv

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2/registry"
	store "github.com/blevesearch/upsidedown_store_api"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Name is the store's registry name.
const Name = "sqlite"

const schema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB
) WITHOUT ROWID`

// Store implements the bleve KVStore interface.
type Store struct {
	db     *sql.DB
	mo     store.MergeOperator
	dir    string
	temp   bool
	logger *logrus.Entry
}

// New opens the store. config["path"] names the directory holding the
// database; an empty path uses a temporary directory removed on Close.
// config["logger"] may carry a *logrus.Entry.
func New(mo store.MergeOperator, config map[string]interface{}) (store.KVStore, error) {
	logger, _ := config["logger"].(*logrus.Entry)
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	dir, _ := config["path"].(string)
	temp := dir == ""
	if temp {
		var err error
		if dir, err = os.MkdirTemp("", "ranker-index-*"); err != nil {
			return nil, fmt.Errorf("sqlitekv: create directory: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("sqlitekv: create directory %s: %w", dir, err)
	}

	dsn := "file:" + filepath.Join(dir, "kv.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		cleanup(dir, temp)
		return nil, fmt.Errorf("sqlitekv: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		cleanup(dir, temp)
		return nil, fmt.Errorf("sqlitekv: create schema: %w", err)
	}

	s := &Store{
		db:     db,
		mo:     mo,
		dir:    dir,
		temp:   temp,
		logger: logger.WithField("store", Name),
	}
	s.logger.WithField("path", dir).Debug("Opened key/value store")
	return s, nil
}

// Reader opens a snapshot of the store.
func (s *Store) Reader() (store.KVReader, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: begin read: %w", err)
	}
	// A deferred transaction takes its snapshot at the first read.
	var one int
	err = tx.QueryRow(`SELECT 1 FROM kv LIMIT 1`).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		tx.Rollback()
		return nil, fmt.Errorf("sqlitekv: start snapshot: %w", err)
	}
	return &Reader{tx: tx}, nil
}

// Writer returns a batch writer.
func (s *Store) Writer() (store.KVWriter, error) {
	return &Writer{s: s}, nil
}

// Close closes the database and removes a temporary directory.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.temp {
		if rmErr := os.RemoveAll(s.dir); rmErr != nil && err == nil {
			err = fmt.Errorf("sqlitekv: remove %s: %w", s.dir, rmErr)
		}
	}
	s.logger.Debug("Closed key/value store")
	return err
}

func cleanup(dir string, temp bool) {
	if temp {
		os.RemoveAll(dir)
	}
}

func init() {
	registry.RegisterKVStore(Name, New)
}
