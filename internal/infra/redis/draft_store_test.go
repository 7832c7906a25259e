package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"careerprep/internal/coverletter"
	"careerprep/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestDraftStoreRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDraftStore(newClient(mr), time.Hour)

	if _, err := store.LoadDraft(ctx, "l1"); !errors.Is(err, domain.ErrCoverLetterNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	draft := coverletter.NewDraft("Dear team")
	draft.Edit("Dear hiring team")
	if _, err := store.SeedDraft(ctx, "l1", draft); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if kept, err := store.SeedDraft(ctx, "l1", coverletter.NewDraft("other")); err != nil || kept != draft {
		t.Fatalf("expected existing draft kept, got %+v %v", kept, err)
	}
	got, err := store.LoadDraft(ctx, "l1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != draft {
		t.Fatalf("expected %+v, got %+v", draft, got)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.LoadDraft(ctx, "l1"); !errors.Is(err, domain.ErrCoverLetterNotFound) {
		t.Fatalf("expected draft to expire, got %v", err)
	}
}

func TestDraftStoreUpdateRetriesOnConcurrentWrite(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	store := NewDraftStore(client, time.Hour)
	if _, err := store.SeedDraft(ctx, "l1", coverletter.NewDraft("old")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	calls := 0
	got, err := store.UpdateDraft(ctx, "l1", func(d *coverletter.Draft) error {
		calls++
		if calls == 1 {
			// Another instance edits the draft between our read and write.
			other := coverletter.NewDraft("old")
			other.Edit("new words")
			raw, _ := json.Marshal(other)
			if err := client.Set(ctx, "coverletter:draft:l1", raw, time.Hour).Err(); err != nil {
				t.Fatalf("concurrent set: %v", err)
			}
		}
		return d.SetMode(coverletter.ModeEdit)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry after the conflicting write, got %d calls", calls)
	}
	want := coverletter.Draft{Content: "new words", Mode: coverletter.ModeEdit, Editing: true}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if stored, _ := store.LoadDraft(ctx, "l1"); stored != want {
		t.Fatalf("expected stored %+v, got %+v", want, stored)
	}

	if _, err := store.UpdateDraft(ctx, "missing", func(*coverletter.Draft) error { return nil }); !errors.Is(err, domain.ErrCoverLetterNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.UpdateDraft(ctx, "l1", func(d *coverletter.Draft) error { return d.SetMode("split") }); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("expected invalid mode, got %v", err)
	}
}
