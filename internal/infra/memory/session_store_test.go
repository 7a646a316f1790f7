package memory

import (
	"context"
	"testing"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	identity := domain.Identity{ID: "alice"}
	created := 0
	create := func() *app.Session {
		created++
		return app.NewSession(identity, nil, NewSnapshotStore(), nil, nil)
	}

	session := store.GetOrCreate("alice", create)
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("alice", create); again != session || created != 1 {
		t.Fatalf("expected the same session, created %d", created)
	}
	if _, ok := store.Get("alice"); !ok {
		t.Fatalf("expected session present")
	}
	if live, err := store.Live(context.Background(), "alice"); err != nil || !live {
		t.Fatalf("expected alice live, got %v %v", live, err)
	}

	_, cancel := session.Subscribe()
	store.DeleteIfUnused("alice")
	if _, ok := store.Get("alice"); !ok {
		t.Fatalf("expected session kept while subscribed")
	}

	cancel()
	store.DeleteIfUnused("alice")
	if _, ok := store.Get("alice"); ok {
		t.Fatalf("expected session removed when unused")
	}
	if live, _ := store.Live(context.Background(), "alice"); live {
		t.Fatalf("expected alice no longer live")
	}
}
