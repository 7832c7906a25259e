package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
	"github.com/redis/go-redis/v9"
)

// maxDraftRetries bounds optimistic retries when another writer changes a draft mid-update.
const maxDraftRetries = 20

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// DraftStore keeps cover-letter editor state in Redis so unsaved edits survive
// restarts and are shared across instances. Drafts expire after ttl of inactivity.
// Draft is stored as: SET coverletter:draft:{id} <json>
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	return &DraftStore{client: client, ttl: ttl}
}

func (s *DraftStore) LoadDraft(ctx context.Context, id string) (coverletter.Draft, error) {
	return s.load(ctx, s.client, id)
}

// SeedDraft stores draft unless one already exists and returns whichever is stored.
func (s *DraftStore) SeedDraft(ctx context.Context, id string, draft coverletter.Draft) (coverletter.Draft, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return coverletter.Draft{}, fmt.Errorf("marshal draft: %w", err)
	}
	set, err := s.client.SetNX(ctx, s.key(id), raw, s.ttl).Result()
	if err != nil {
		return coverletter.Draft{}, fmt.Errorf("seed draft: %w", err)
	}
	if set {
		return draft, nil
	}
	return s.LoadDraft(ctx, id)
}

// UpdateDraft applies fn to the stored draft under WATCH, retrying when a
// concurrent writer changed the key between the read and the write.
func (s *DraftStore) UpdateDraft(ctx context.Context, id string, fn func(*coverletter.Draft) error) (coverletter.Draft, error) {
	key := s.key(id)
	var updated coverletter.Draft
	txf := func(tx *redis.Tx) error {
		draft, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&draft); err != nil {
			return err
		}
		raw, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("marshal draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			updated = draft
		}
		return err
	}

	for i := 0; i < maxDraftRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return coverletter.Draft{}, err
		}
	}
	return coverletter.Draft{}, fmt.Errorf("update draft %s: too many concurrent writers", id)
}

func (s *DraftStore) load(ctx context.Context, c getter, id string) (coverletter.Draft, error) {
	raw, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return coverletter.Draft{}, domain.ErrCoverLetterNotFound
	}
	if err != nil {
		return coverletter.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	var draft coverletter.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return coverletter.Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

func (s *DraftStore) key(id string) string {
	return "coverletter:draft:" + id
}
