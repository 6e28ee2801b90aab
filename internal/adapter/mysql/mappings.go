package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/m-mizutani/goerr/v2"
)

// Key types stored in board_user_mappings.key_type.
const (
	KeyUsername = "username"
	KeyUserID   = "user_id"
)

// MappingStore implements ports.UserMappings over the board_user_mappings table.
type MappingStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMappingStore opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewMappingStore(ctx context.Context, dsn string, log *slog.Logger) (*MappingStore, error) {
	if dsn == "" {
		return nil, goerr.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "mysql: open failed")
	}
	// Lookups are small and infrequent.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "mysql: ping failed")
	}
	return &MappingStore{db: db, log: log}, nil
}

func (s *MappingStore) ByUsername(ctx context.Context, username string) (string, bool, error) {
	return s.lookup(ctx, KeyUsername, username)
}

func (s *MappingStore) ByUserID(ctx context.Context, userID string) (string, bool, error) {
	return s.lookup(ctx, KeyUserID, userID)
}

func (s *MappingStore) lookup(ctx context.Context, keyType, key string) (string, bool, error) {
	const q = `SELECT tracking_user_id FROM board_user_mappings WHERE key_type = ? AND board_key = ?`
	var id string
	err := s.db.QueryRowContext(ctx, q, keyType, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "mysql: mapping lookup failed",
			goerr.V("key_type", keyType),
			goerr.V("key", key),
		)
	}
	return id, id != "", nil
}

// Import upserts mappings keyed by username and by board user id in one
// transaction. It returns the number of rows written.
func (s *MappingStore) Import(ctx context.Context, byUsername, byUserID map[string]string) (int, error) {
	if len(byUsername) == 0 && len(byUserID) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, goerr.Wrap(err, "mysql: begin failed")
	}
	const q = `
INSERT INTO board_user_mappings
  (key_type, board_key, tracking_user_id, updated_at)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  tracking_user_id=VALUES(tracking_user_id),
  updated_at=VALUES(updated_at);
`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return 0, goerr.Wrap(err, "mysql: prepare failed")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	n := 0
	for _, set := range []struct {
		keyType string
		m       map[string]string
	}{{KeyUsername, byUsername}, {KeyUserID, byUserID}} {
		for key, id := range set.m {
			if key == "" || id == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, set.keyType, key, id, now); err != nil {
				tx.Rollback()
				return 0, goerr.Wrap(err, "mysql: upsert failed", goerr.V("key_type", set.keyType), goerr.V("key", key))
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, goerr.Wrap(err, "mysql: commit failed")
	}
	s.log.Info("mysql mappings imported", slog.Int("count", n))
	return n, nil
}

// Close closes the underlying DB.
func (s *MappingStore) Close() error { return s.db.Close() }
