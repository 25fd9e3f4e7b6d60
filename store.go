/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Seednode/quizduel/games/duel"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// RoomSnapshot is everything needed to bring a room back after a restart:
// the board and, if one was in progress, the duel.
type RoomSnapshot struct {
	Room    string         `json:"room"`
	Tiles   []duel.Player  `json:"tiles"`
	Cursor  int            `json:"cursor"`
	Duel    *duel.Snapshot `json:"duel"`
	SavedAt time.Time      `json:"saved_at"`
}

type SnapshotStore interface {
	Save(ctx context.Context, snap RoomSnapshot) error
	Load(ctx context.Context, room string) (RoomSnapshot, error)
	Delete(ctx context.Context, room string) error
	Close()
}

func openSnapshotStore(ctx context.Context, cfg *Config) (SnapshotStore, error) {
	switch {
	case cfg.databaseURL != "":
		s, err := newPostgresStore(ctx, cfg.databaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case cfg.snapshotFile != "":
		s, err := newFileStore(cfg.snapshotFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, nil
}

// fileStore keeps every room in a single json document, rewritten in full
// on each save.
type fileStore struct {
	mu    sync.Mutex
	path  string
	rooms map[string]RoomSnapshot
}

func newFileStore(path string) (*fileStore, error) {
	s := &fileStore{
		path:  path,
		rooms: make(map[string]RoomSnapshot),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.rooms); err != nil {
		return nil, fmt.Errorf("parse snapshots %s: %w", path, err)
	}

	return s, nil
}

func (s *fileStore) Save(_ context.Context, snap RoomSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[snap.Room] = snap

	return s.flushLocked()
}

func (s *fileStore) Load(_ context.Context, room string) (RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.rooms[room]
	if !ok {
		return RoomSnapshot{}, ErrSnapshotNotFound
	}

	return snap, nil
}

func (s *fileStore) Delete(_ context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room]; !ok {
		return nil
	}
	delete(s.rooms, room)

	return s.flushLocked()
}

func (s *fileStore) Close() {}

func (s *fileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.rooms, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshots: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}

	return os.Rename(tmp.Name(), s.path)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(ctx context.Context, dsn string) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect snapshot database: %w", err)
	}
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}

func (s *postgresStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS room_snapshots (
			room TEXT PRIMARY KEY,
			snapshot JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_room_snapshots_saved ON room_snapshots(saved_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("migrate snapshot database: %w", err)
		}
	}

	return nil
}

func (s *postgresStore) Save(ctx context.Context, snap RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO room_snapshots (room, snapshot, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (room) DO UPDATE SET snapshot = EXCLUDED.snapshot, saved_at = EXCLUDED.saved_at`,
		snap.Room, data, snap.SavedAt)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Room, err)
	}

	return nil
}

func (s *postgresStore) Load(ctx context.Context, room string) (RoomSnapshot, error) {
	var data []byte

	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM room_snapshots WHERE room = $1`, room).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return RoomSnapshot{}, fmt.Errorf("load snapshot %s: %w", room, err)
	}

	var snap RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return RoomSnapshot{}, fmt.Errorf("parse snapshot %s: %w", room, err)
	}

	return snap, nil
}

func (s *postgresStore) Delete(ctx context.Context, room string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM room_snapshots WHERE room = $1`, room); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", room, err)
	}
	return nil
}

// snapshotWriter saves snapshots off the game loop. Only the newest pending
// snapshot of a room is kept, so a slow store never blocks play.
type snapshotWriter struct {
	store   SnapshotStore
	pending chan RoomSnapshot
	done    chan struct{}
}

func newSnapshotWriter(store SnapshotStore) *snapshotWriter {
	return &snapshotWriter{
		store:   store,
		pending: make(chan RoomSnapshot, 1),
		done:    make(chan struct{}),
	}
}

func (w *snapshotWriter) Offer(snap RoomSnapshot) {
	for {
		select {
		case w.pending <- snap:
			return
		default:
		}

		select {
		case <-w.pending:
		default:
		}
	}
}

func (w *snapshotWriter) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			select {
			case snap := <-w.pending:
				w.save(context.Background(), snap)
			default:
			}
			return
		case snap := <-w.pending:
			w.save(ctx, snap)
		}
	}
}

func (w *snapshotWriter) save(ctx context.Context, snap RoomSnapshot) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := w.store.Save(ctx, snap); err != nil {
		errorf("SNAPSHOT: Failed to save room %s: %v", snap.Room, err)
	}
}
