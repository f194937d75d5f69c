// Package store persists CodeGraph snapshots in sqlite so a review can
// compare graphs built in separate runs.
package store

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Entry describes a stored snapshot without its payload.
type Entry struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	GraphID       string    `json:"graphId"`
	Root          string    `json:"root"`
	FileCount     int       `json:"fileCount"`
	FunctionCount int       `json:"functionCount"`
	TypeCount     int       `json:"typeCount"`
	RawSize       int       `json:"rawSize"`
	Checksum      string    `json:"checksum"`
	SavedAt       time.Time `json:"savedAt"`
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex

	enc *zstd.Encoder
	dec *zstd.Decoder
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("store path %q is a directory, expected file", cleanPath))
		return nil, errors.AddContext(err, errors.CtxPath, cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL keep watch-mode rewrites from tripping over readers.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Store{path: cleanPath, db: db, enc: enc, dec: dec}, nil
}

// Close releases the database and the zstd codec goroutines. Closing twice
// is a no-op; other calls after Close fail.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	encErr := s.enc.Close()
	s.dec.Close()
	dbErr := s.db.Close()
	s.db, s.enc, s.dec = nil, nil, nil
	if dbErr != nil {
		return dbErr
	}
	return encErr
}

func (s *Store) closed() error {
	if s.db == nil {
		return errors.New(errors.CodeInternal, "snapshot store is closed")
	}
	return nil
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func checksum(data []byte) string {
	return strconv.FormatUint(xxh3.Hash(data), 16)
}

// Save writes g under label, replacing any snapshot already stored there.
func (s *Store) Save(label string, g *graph.CodeGraph) (Entry, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Entry{}, errors.New(errors.CodeValidationError, "snapshot label must not be empty")
	}
	if g == nil {
		return Entry{}, errors.New(errors.CodeGraphNotFound, "no graph to save")
	}
	raw, err := graph.Marshal(g)
	if err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closed(); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:            uuid.NewString(),
		Label:         label,
		GraphID:       g.ID,
		Root:          g.Root,
		FileCount:     len(g.Files),
		FunctionCount: len(g.Functions),
		TypeCount:     len(g.Types),
		RawSize:       len(raw),
		Checksum:      checksum(raw),
		SavedAt:       time.Now().UTC(),
	}
	payload := s.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))

	const query = `
INSERT INTO snapshots (
  label, id, graph_id, root, file_count, function_count, type_count,
  raw_size, checksum, payload, saved_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(label) DO UPDATE SET
  id=excluded.id,
  graph_id=excluded.graph_id,
  root=excluded.root,
  file_count=excluded.file_count,
  function_count=excluded.function_count,
  type_count=excluded.type_count,
  raw_size=excluded.raw_size,
  checksum=excluded.checksum,
  payload=excluded.payload,
  saved_at_utc=excluded.saved_at_utc
`
	err = s.withRetry("save snapshot", func() error {
		_, err := s.db.Exec(query,
			entry.Label, entry.ID, entry.GraphID, entry.Root,
			entry.FileCount, entry.FunctionCount, entry.TypeCount,
			entry.RawSize, entry.Checksum, payload,
			entry.SavedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		err = errors.Wrap(err, errors.CodeInternal, "save snapshot")
		err = errors.AddContext(err, errors.CtxStage, errors.StagePersist)
		return Entry{}, errors.AddContext(err, errors.CtxSymbol, label)
	}
	slog.Debug("snapshot saved", "label", label, "files", entry.FileCount, "bytes", len(payload))
	return entry, nil
}

// Load returns the snapshot stored under label. An absent label is
// GRAPH_NOT_FOUND; a payload that fails its checksum is SERIALIZATION_FAILURE.
func (s *Store) Load(label string) (*graph.CodeGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closed(); err != nil {
		return nil, err
	}

	var (
		payload []byte
		sum     string
	)
	err := s.withRetry("load snapshot", func() error {
		return s.db.QueryRow(`SELECT payload, checksum FROM snapshots WHERE label = ?`, label).Scan(&payload, &sum)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			nf := errors.New(errors.CodeGraphNotFound, fmt.Sprintf("no snapshot labelled %q", label))
			return nil, errors.AddContext(nf, errors.CtxSymbol, label)
		}
		err = errors.Wrap(err, errors.CodeInternal, "load snapshot")
		return nil, errors.AddContext(err, errors.CtxStage, errors.StagePersist)
	}

	raw, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		err = errors.Wrap(err, errors.CodeSerializationFailure, "decompress snapshot")
		return nil, errors.AddContext(err, errors.CtxSymbol, label)
	}
	if got := checksum(raw); got != sum {
		err := errors.New(errors.CodeSerializationFailure, fmt.Sprintf("snapshot checksum mismatch: stored %s, computed %s", sum, got))
		return nil, errors.AddContext(err, errors.CtxSymbol, label)
	}
	return graph.UnmarshalCodeGraph(raw)
}

// List returns every stored snapshot, newest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closed(); err != nil {
		return nil, err
	}

	var rows *sql.Rows
	err := s.withRetry("list snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT label, id, graph_id, root, file_count, function_count, type_count, raw_size, checksum, saved_at_utc
FROM snapshots
ORDER BY saved_at_utc DESC, label ASC`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e     Entry
			tsRaw string
		)
		if err := rows.Scan(&e.Label, &e.ID, &e.GraphID, &e.Root, &e.FileCount, &e.FunctionCount,
			&e.TypeCount, &e.RawSize, &e.Checksum, &tsRaw); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		e.SavedAt = ts.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return entries, nil
}

// Delete removes the snapshot stored under label. Deleting an absent label
// is GRAPH_NOT_FOUND.
func (s *Store) Delete(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closed(); err != nil {
		return err
	}

	var res sql.Result
	err := s.withRetry("delete snapshot", func() error {
		var execErr error
		res, execErr = s.db.Exec(`DELETE FROM snapshots WHERE label = ?`, label)
		return execErr
	})
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		nf := errors.New(errors.CodeGraphNotFound, fmt.Sprintf("no snapshot labelled %q", label))
		return errors.AddContext(nf, errors.CtxSymbol, label)
	}
	return nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
