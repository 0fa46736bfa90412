package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/config"
	"github.com/sandcastle-dev/sandcastle/internal/domain"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/store"
	"github.com/sandcastle-dev/sandcastle/internal/testutil"
)

func newTestManager(t *testing.T, maxLive int) (*Manager, *store.Store, *testutil.RecordingHub) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Subscriptions.MaxLive = maxLive
	cfg.Sessions.TranscriptsDir = filepath.Join(dir, "transcripts")
	if err := os.MkdirAll(cfg.Sessions.TranscriptsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	hub := testutil.NewRecordingHub()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewManager(st, hub, cfg, logger), st, hub
}

func seedRepo(t *testing.T, st *store.Store, id string) {
	t.Helper()
	err := st.CreateRepository(context.Background(), &store.Repository{
		ID:   id,
		Name: id,
		Path: filepath.Join(t.TempDir(), id),
	})
	if err != nil {
		t.Fatalf("seed repository: %v", err)
	}
}

func seedSession(t *testing.T, m *Manager, repoID, title string) *store.Session {
	t.Helper()
	sess, err := m.Create(context.Background(), repoID, title, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManager_CreateRequiresRepository(t *testing.T) {
	m, _, _ := newTestManager(t, 3)

	_, err := m.Create(context.Background(), "missing", "title", "")
	if !errors.Is(err, domain.ErrRepositoryNotFound) {
		t.Errorf("err = %v, want ErrRepositoryNotFound", err)
	}
}

func TestManager_CreatePublishesEvent(t *testing.T) {
	m, st, hub := newTestManager(t, 3)
	seedRepo(t, st, "r1")

	sess := seedSession(t, m, "r1", "first")

	if sess.ID == "" {
		t.Fatal("expected generated session ID")
	}
	if hub.CountType(events.EventTypeSessionCreated) != 1 {
		t.Error("expected one session_created event")
	}

	got, err := m.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "first" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestManager_VisitUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t, 3)

	_, err := m.Visit(context.Background(), "client-1", "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_VisitMakesSessionLive(t *testing.T) {
	m, st, hub := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	if _, err := m.Visit(context.Background(), "client-1", sess.ID); err != nil {
		t.Fatalf("visit: %v", err)
	}

	subscribed := m.Subscribed("client-1")
	if len(subscribed) != 1 || subscribed[0] != sess.ID {
		t.Errorf("subscribed = %v", subscribed)
	}
	if hub.CountType(events.EventTypeSessionVisited) != 1 {
		t.Error("expected one session_visited event")
	}

	// Revisiting does not add a duplicate or a second visited event.
	if _, err := m.Visit(context.Background(), "client-1", sess.ID); err != nil {
		t.Fatalf("revisit: %v", err)
	}
	if got := len(m.Subscribed("client-1")); got != 1 {
		t.Errorf("subscribed count = %d after revisit", got)
	}
	if hub.CountType(events.EventTypeSessionVisited) != 1 {
		t.Error("revisit should not publish session_visited")
	}
}

func TestManager_VisitEvictsOldest(t *testing.T) {
	m, st, hub := newTestManager(t, 2)
	seedRepo(t, st, "r1")
	s1 := seedSession(t, m, "r1", "")
	s2 := seedSession(t, m, "r1", "")
	s3 := seedSession(t, m, "r1", "")

	ctx := context.Background()
	var last *VisitResult
	for _, id := range []string{s1.ID, s2.ID, s3.ID} {
		res, err := m.Visit(ctx, "client-1", id)
		if err != nil {
			t.Fatalf("visit %s: %v", id, err)
		}
		last = res
	}
	if last.Evicted != s1.ID {
		t.Errorf("result.Evicted = %q, want %s", last.Evicted, s1.ID)
	}

	subscribed := m.Subscribed("client-1")
	if len(subscribed) != 2 || subscribed[0] != s3.ID || subscribed[1] != s2.ID {
		t.Errorf("subscribed = %v, want [%s %s]", subscribed, s3.ID, s2.ID)
	}

	ev := hub.LastOfType(events.EventTypeSessionEvicted)
	if ev == nil {
		t.Fatal("expected session_evicted event")
	}
	payload := ev.(*events.BaseEvent).Payload.(events.SessionEvictedPayload)
	if payload.SessionID != s1.ID {
		t.Errorf("evicted = %s, want %s", payload.SessionID, s1.ID)
	}
	if payload.SupersededBy != s3.ID {
		t.Errorf("superseded_by = %s, want %s", payload.SupersededBy, s3.ID)
	}
	if payload.ClientID != "client-1" {
		t.Errorf("client_id = %q, want client-1", payload.ClientID)
	}
}

func TestManager_VisitReportsNoEvictionUnderCapacity(t *testing.T) {
	m, st, _ := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	s1 := seedSession(t, m, "r1", "")
	s2 := seedSession(t, m, "r1", "")

	ctx := context.Background()
	for _, id := range []string{s1.ID, s2.ID} {
		res, err := m.Visit(ctx, "client-1", id)
		if err != nil {
			t.Fatalf("visit %s: %v", id, err)
		}
		if res.Evicted != "" {
			t.Errorf("result.Evicted = %q, want empty", res.Evicted)
		}
		if res.Session == nil || res.Session.ID != id {
			t.Errorf("result.Session = %v, want %s", res.Session, id)
		}
	}
}

func TestManager_EvictionCarriesEvictedSessionsRepository(t *testing.T) {
	m, st, hub := newTestManager(t, 1)
	seedRepo(t, st, "r1")
	seedRepo(t, st, "r2")
	s1 := seedSession(t, m, "r1", "")
	s2 := seedSession(t, m, "r2", "")

	ctx := context.Background()
	if _, err := m.Visit(ctx, "client-1", s1.ID); err != nil {
		t.Fatalf("visit s1: %v", err)
	}
	if _, err := m.Visit(ctx, "client-1", s2.ID); err != nil {
		t.Fatalf("visit s2: %v", err)
	}

	ev := hub.LastOfType(events.EventTypeSessionEvicted)
	if ev == nil {
		t.Fatal("expected session_evicted event")
	}
	if got := ev.GetRepositoryID(); got != "r1" {
		t.Errorf("repository context = %q, want r1 (the evicted session's repository)", got)
	}
}

func TestManager_ConcurrentVisitsShareOneClientState(t *testing.T) {
	m, st, _ := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Visit(ctx, "client-1", sess.ID); err != nil {
				t.Errorf("visit: %v", err)
			}
		}()
	}
	wg.Wait()

	// All visits must land in the same live set; a lost clientState would
	// orphan a subscription with an un-cancelled controller.
	if got := m.Subscribed("client-1"); len(got) != 1 || got[0] != sess.ID {
		t.Errorf("subscribed = %v, want [%s]", got, sess.ID)
	}
	if got := m.LiveCount(); got != 1 {
		t.Errorf("LiveCount() = %d, want 1", got)
	}

	live := m.Live("client-1")
	if live == nil {
		t.Fatal("expected registered client state")
	}
	ctrl := live.Controller(sess.ID)
	if ctrl == nil || ctrl.Cancelled() {
		t.Error("expected a live, non-cancelled controller for the session")
	}
}

func TestManager_LeaveIsIdempotent(t *testing.T) {
	m, st, hub := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	ctx := context.Background()
	if _, err := m.Visit(ctx, "client-1", sess.ID); err != nil {
		t.Fatal(err)
	}

	if err := m.Leave(ctx, "client-1", sess.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := len(m.Subscribed("client-1")); got != 0 {
		t.Errorf("subscribed count = %d after leave", got)
	}
	if hub.CountType(events.EventTypeSessionLeft) != 1 {
		t.Error("expected one session_left event")
	}

	// Leaving again, or for an unknown client, is silent.
	if err := m.Leave(ctx, "client-1", sess.ID); err != nil {
		t.Errorf("second leave: %v", err)
	}
	if err := m.Leave(ctx, "ghost", sess.ID); err != nil {
		t.Errorf("unknown client leave: %v", err)
	}
	if hub.CountType(events.EventTypeSessionLeft) != 1 {
		t.Error("repeated leave should not publish again")
	}
}

func TestManager_ClientsAreIsolated(t *testing.T) {
	m, st, _ := newTestManager(t, 2)
	seedRepo(t, st, "r1")
	s1 := seedSession(t, m, "r1", "")
	s2 := seedSession(t, m, "r1", "")

	ctx := context.Background()
	if _, err := m.Visit(ctx, "client-a", s1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Visit(ctx, "client-b", s2.ID); err != nil {
		t.Fatal(err)
	}

	if got := m.Subscribed("client-a"); len(got) != 1 || got[0] != s1.ID {
		t.Errorf("client-a subscribed = %v", got)
	}
	if got := m.Subscribed("client-b"); len(got) != 1 || got[0] != s2.ID {
		t.Errorf("client-b subscribed = %v", got)
	}
	if m.LiveCount() != 2 {
		t.Errorf("live count = %d, want 2", m.LiveCount())
	}
}

func TestManager_UnregisterClientDropsSubscriptions(t *testing.T) {
	m, st, _ := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	live := m.RegisterClient("client-1")
	if _, err := m.Visit(context.Background(), "client-1", sess.ID); err != nil {
		t.Fatal(err)
	}

	ctrl := live.Controller(sess.ID)
	if ctrl == nil {
		t.Fatal("expected controller for live session")
	}

	m.UnregisterClient("client-1")

	if !ctrl.Cancelled() {
		t.Error("controller should be cancelled after unregister")
	}
	if m.Live("client-1") != nil {
		t.Error("live set should be gone after unregister")
	}
	if got := m.Subscribed("client-1"); len(got) != 0 {
		t.Errorf("subscribed = %v after unregister", got)
	}
}

func TestManager_ArchiveDropsLiveSubscriptions(t *testing.T) {
	m, st, hub := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	ctx := context.Background()
	if _, err := m.Visit(ctx, "client-1", sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Visit(ctx, "client-2", sess.ID); err != nil {
		t.Fatal(err)
	}

	if err := m.Archive(ctx, sess.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if len(m.Subscribed("client-1")) != 0 || len(m.Subscribed("client-2")) != 0 {
		t.Error("archived session should be dropped from all clients")
	}
	if hub.CountType(events.EventTypeSessionArchived) != 1 {
		t.Error("expected one session_archived event")
	}

	sessions, err := m.List(ctx, "r1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("active sessions = %d, want 0", len(sessions))
	}
}

func TestManager_VisitStreamsTranscript(t *testing.T) {
	m, st, hub := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	path := filepath.Join(m.cfg.Sessions.TranscriptsDir, sess.ID+".jsonl")
	if err := os.WriteFile(path, []byte(`{"role":"user"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Visit(context.Background(), "client-1", sess.ID); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return hub.CountType(events.EventTypeSessionMessage) == 1 &&
			hub.CountType(events.EventTypeStreamCaughtUp) == 1
	})
}

func TestManager_StopCancelsEverything(t *testing.T) {
	m, st, _ := newTestManager(t, 3)
	seedRepo(t, st, "r1")
	sess := seedSession(t, m, "r1", "")

	live := m.RegisterClient("client-1")
	if _, err := m.Visit(context.Background(), "client-1", sess.ID); err != nil {
		t.Fatal(err)
	}
	ctrl := live.Controller(sess.ID)

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !ctrl.Cancelled() {
		t.Error("controller should be cancelled after Stop")
	}
	if m.LiveCount() != 0 {
		t.Errorf("live count = %d after Stop", m.LiveCount())
	}
}
