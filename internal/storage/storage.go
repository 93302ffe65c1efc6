package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/player"
)

var (
	ErrNameTaken = errors.New("account name already exists")
	ErrNotFound  = errors.New("account not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	key         TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	credentials BLOB NOT NULL,
	state       BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS server_state (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type credentials struct {
	Hash  []byte `json:"hash"`
	Email string `json:"email"`
}

// Store keeps accounts and the server-wide record in sqlite. Every blob is
// sealed with the storage key; gameplay state is lz4-compressed first.
type Store struct {
	db     *sql.DB
	cipher *envelope.Cipher

	HashCost int
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string, cipher *envelope.Cipher) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, cipher: cipher, HashCost: bcrypt.DefaultCost}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateAccount stores a new account with its initial state. The name is
// compared without regard to case.
func (s *Store) CreateAccount(name, password, email string, state []byte, now time.Time) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	creds, err := json.Marshal(credentials{Hash: hash, Email: email})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealedCreds, err := s.cipher.Seal(creds)
	if err != nil {
		return err
	}
	sealedState, err := s.sealState(state)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`INSERT INTO accounts (key, name, credentials, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		player.Key(name), name, sealedCreds, sealedState, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	if n == 0 {
		return ErrNameTaken
	}
	return nil
}

// CheckPassword reports whether password matches the account. An unknown
// account is not an error, it simply does not match.
func (s *Store) CheckPassword(name, password string) (bool, error) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT credentials FROM accounts WHERE key = ?`, player.Key(name)).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read credentials: %w", err)
	}

	raw, err := s.cipher.Open(sealed)
	if err != nil {
		return false, fmt.Errorf("failed to open credentials for %s: %w", name, err)
	}
	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return false, fmt.Errorf("failed to decode credentials for %s: %w", name, err)
	}

	err = bcrypt.CompareHashAndPassword(creds.Hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}

// LoadState returns the stored display name and gameplay state.
func (s *Store) LoadState(name string) (string, []byte, error) {
	var (
		display string
		sealed  []byte
	)
	err := s.db.QueryRow(`SELECT name, state FROM accounts WHERE key = ?`, player.Key(name)).Scan(&display, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read state: %w", err)
	}

	state, err := s.openState(sealed)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open state for %s: %w", name, err)
	}
	return display, state, nil
}

func (s *Store) SaveState(name string, state []byte, now time.Time) error {
	sealed, err := s.sealState(state)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE accounts SET state = ?, updated_at = ? WHERE key = ?`,
		sealed, now.UnixMilli(), player.Key(name),
	)
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadServer returns the server-wide record, or nil when none was saved.
func (s *Store) LoadServer() ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRow(`SELECT data FROM server_state WHERE id = 1`).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read server state: %w", err)
	}

	data, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open server state: %w", err)
	}
	return data, nil
}

func (s *Store) SaveServer(data []byte, now time.Time) error {
	sealed, err := s.cipher.Seal(data)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO server_state (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sealed, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save server state: %w", err)
	}
	return nil
}

func (s *Store) sealState(state []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(state); err != nil {
		return nil, fmt.Errorf("failed to compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress state: %w", err)
	}
	return s.cipher.Seal(buf.Bytes())
}

func (s *Store) openState(sealed []byte) ([]byte, error) {
	compressed, err := s.cipher.Open(sealed)
	if err != nil {
		return nil, err
	}
	state, err := io.ReadAll(lz4.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress state: %w", err)
	}
	return state, nil
}
