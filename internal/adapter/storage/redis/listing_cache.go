package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"idle-market/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ListingCache implements ports.ListingCache. Entries are JSON snapshots of a
// listing. Every committed write raises a per-listing version floor and drops
// the snapshot, so a reader that loaded an older row cannot cache it afterwards.
type ListingCache struct {
	client goredis.UniversalClient
}

const (
	floorTTL      = 10 * time.Minute
	maxTxAttempts = 3
)

var errStaleSnapshot = errors.New("snapshot older than version floor")

// NewListingCache creates a Redis-backed listing cache.
func NewListingCache(client goredis.UniversalClient) *ListingCache {
	return &ListingCache{client: client}
}

func listingKey(id uuid.UUID) string { return fmt.Sprintf("listing:%s", id) }

func floorKey(id uuid.UUID) string { return fmt.Sprintf("listing:%s:floor", id) }

// Get returns the cached listing or nil, nil on a miss.
func (c *ListingCache) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	data, err := c.client.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis listing get: %w", err)
	}

	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		// Corrupt entry: drop it and report a miss.
		c.client.Del(ctx, listingKey(id))
		return nil, nil
	}
	return &l, nil
}

// Set stores a snapshot of the listing unless a newer version has already
// been committed. A skipped write is not an error.
func (c *ListingCache) Set(ctx context.Context, l *domain.Listing, ttl time.Duration) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}

	err = c.watchFloor(ctx, l.ID, func(tx *goredis.Tx, floor int64) error {
		if l.Version < floor {
			return errStaleSnapshot
		}
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, listingKey(l.ID), data, ttl)
			return nil
		})
		return err
	})
	switch {
	case err == nil, errors.Is(err, errStaleSnapshot), errors.Is(err, goredis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("redis listing set: %w", err)
	}
}

// Invalidate drops the cached snapshot and raises the version floor to version.
func (c *ListingCache) Invalidate(ctx context.Context, id uuid.UUID, version int64) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = c.watchFloor(ctx, id, func(tx *goredis.Tx, floor int64) error {
			_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				if version > floor {
					pipe.Set(ctx, floorKey(id), version, floorTTL)
				}
				pipe.Del(ctx, listingKey(id))
				return nil
			})
			return err
		})
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		// Still drop the snapshot even if the floor could not be raised.
		c.client.Del(ctx, listingKey(id))
		return fmt.Errorf("redis listing invalidate: %w", err)
	}
	return nil
}

func (c *ListingCache) watchFloor(ctx context.Context, id uuid.UUID, fn func(tx *goredis.Tx, floor int64) error) error {
	return c.client.Watch(ctx, func(tx *goredis.Tx) error {
		floor, err := tx.Get(ctx, floorKey(id)).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		return fn(tx, floor)
	}, floorKey(id))
}
