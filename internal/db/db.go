// Package db is the device-local key-value store holding the session token
// and the cached self profile.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Keys used by the client.
const (
	KeyAuthToken = "@auth_token"
	KeyUserData  = "@user_data"
)

var ErrNotFound = errors.New("db: key not found")

type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the sqlite database at path. ":memory:"
// gives a throwaway store.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// One connection: an in-memory database is private to its connection.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(0)

	d := &DB{conn: conn}
	if err := d.init(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("db: opened %s", path)
	return d, nil
}

func (d *DB) init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}
	_, err := d.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Get returns the value stored under key or ErrNotFound.
func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes all keys in one transaction. Missing keys are ignored.
func (d *DB) Delete(ctx context.Context, keys ...string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return tx.Commit()
}
