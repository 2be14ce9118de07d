// Package sqlite stores memory records in a SQLite file and ranks them with
// an exhaustive cosine scan in Go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"webrag/internal/domain"
	"webrag/internal/vectorstore"
)

type Storage struct {
	db *sql.DB

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	// Path is the database file; ":memory:" keeps everything in process.
	Path string
}

// NewStorage opens (or creates) the database. The collection table is created
// by Reset.
func NewStorage(cfg Config) (*Storage, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.T(domain.ErrTagStore), goerr.V("path", path))
	}
	// One connection serialises writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.T(domain.ErrTagStore), goerr.V("pragma", p))
		}
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Reset(ctx context.Context, dimension int, metric domain.Metric) error {
	if err := vectorstore.CheckReset(dimension, metric); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`DROP TABLE IF EXISTS memory_records`,
		`CREATE TABLE memory_records (
			url    TEXT PRIMARY KEY,
			text   TEXT NOT NULL,
			vector BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to reset collection", goerr.T(domain.ErrTagStore))
		}
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := vectorstore.CheckRecord(record, s.dimension); err != nil {
		return goerr.Wrap(err, "rejected record", goerr.V("url", record.URL))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_records (url, text, vector) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET text = excluded.text, vector = excluded.vector`,
		record.URL, record.Text, encodeVector(record.Vector),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to upsert record", goerr.T(domain.ErrTagStore), goerr.V("url", record.URL))
	}
	return nil
}

// Search scores every row. Equal scores keep insertion order.
func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := vectorstore.CheckQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.Match{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT url, text, vector FROM memory_records ORDER BY rowid`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query records", goerr.T(domain.ErrTagStore))
	}
	defer rows.Close()

	matches := []domain.Match{}
	for rows.Next() {
		var (
			m    domain.Match
			blob []byte
		)
		if err := rows.Scan(&m.URL, &m.Text, &blob); err != nil {
			return nil, goerr.Wrap(err, "failed to scan record", goerr.T(domain.ErrTagStore))
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, goerr.Wrap(err, "corrupt vector", goerr.V("url", m.URL))
		}
		m.Score = vectorstore.Cosine(vector, stored)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records", goerr.T(domain.ErrTagStore))
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database", goerr.T(domain.ErrTagStore))
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, goerr.New("vector blob length is not a multiple of 4",
			goerr.T(domain.ErrTagStore), goerr.V("length", len(buf)))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
