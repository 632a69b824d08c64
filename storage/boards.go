// Package storage persists board documents in Redis, one JSON document per
// board keyed by id plus a set index for listing. Saves are single
// whole-document replaces, so a crash mid-mutation leaves either the prior
// document or the fully updated one.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/board"
	"taskboard-api/domain"
)

const (
	boardKeyPrefix = "board:"
	boardIndexKey  = "boards"
)

// Store is a Redis-backed board document store.
type Store struct {
	rdb *redis.Client
}

// New creates a Store using the provided Redis client.
func New(client *redis.Client) *Store {
	return &Store{rdb: client}
}

func boardKey(id string) string {
	return boardKeyPrefix + id
}

// GetByID loads one board document.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Board, error) {
	data, err := s.rdb.Get(ctx, boardKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Board{}, fmt.Errorf("board %s: %w", id, board.ErrBoardNotFound)
		}
		return domain.Board{}, fmt.Errorf("storage: get board %s: %w", id, err)
	}
	var b domain.Board
	if err := sonic.Unmarshal(data, &b); err != nil {
		return domain.Board{}, fmt.Errorf("storage: decode board %s: %w", id, err)
	}
	return b, nil
}

// Save replaces the whole board document and records it in the index.
func (s *Store) Save(ctx context.Context, b domain.Board) error {
	if b.ID == "" {
		return errors.New("storage: save board: missing id")
	}
	data, err := sonic.Marshal(b)
	if err != nil {
		return fmt.Errorf("storage: encode board %s: %w", b.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, boardKey(b.ID), data, 0)
	pipe.SAdd(ctx, boardIndexKey, b.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: save board %s: %w", b.ID, err)
	}
	return nil
}

// Remove deletes a board document. Removing an unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, boardKey(id))
	pipe.SRem(ctx, boardIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: remove board %s: %w", id, err)
	}
	return nil
}

// List loads all indexed boards. Index entries whose document has gone
// missing are skipped.
func (s *Store) List(ctx context.Context) ([]domain.Board, error) {
	ids, err := s.rdb.SMembers(ctx, boardIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: list boards: %w", err)
	}
	boards := make([]domain.Board, 0, len(ids))
	if len(ids) == 0 {
		return boards, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = boardKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: list boards: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var b domain.Board
		if err := sonic.Unmarshal([]byte(raw), &b); err != nil {
			continue
		}
		boards = append(boards, b)
	}
	return boards, nil
}
