package memory

import (
	"testing"

	"careerprep/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	created := 0
	create := func(userID string) *app.Session {
		created++
		return app.NewSession(userID)
	}

	session := store.GetOrCreate("u1", create)
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("u1", create); again != session || created != 1 {
		t.Fatalf("expected existing session to be reused, created=%d", created)
	}
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("expected session present")
	}

	keep := func(*app.Session) bool { return false }
	if _, ok := store.RemoveIf("u1", keep); ok {
		t.Fatalf("expected session kept when retire declines")
	}
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("expected session still present")
	}

	removed, ok := store.RemoveIf("u1", (*app.Session).Retire)
	if !ok || removed != session {
		t.Fatalf("expected session removed")
	}
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session gone after remove")
	}
	if _, ok := store.RemoveIf("u1", (*app.Session).Retire); ok {
		t.Fatalf("expected second remove to report missing")
	}
}

func TestSessionStoreKeepsWatchedSession(t *testing.T) {
	store := NewSessionStore()
	session := store.GetOrCreate("u1", func(userID string) *app.Session { return app.NewSession(userID) })
	_, cancel := session.Subscribe()

	if _, ok := store.RemoveIf("u1", (*app.Session).Retire); ok {
		t.Fatalf("expected subscribed session to stay")
	}
	cancel()
	if _, ok := store.RemoveIf("u1", (*app.Session).Retire); !ok {
		t.Fatalf("expected session removed after last subscriber left")
	}
}
