package session

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestStore_LogCreatesLazily(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if s.Exists("expert1") {
		t.Fatal("log should not exist before first access")
	}
	if got := s.Log("expert1"); len(got) != 0 {
		t.Fatalf("expected empty log, got %d turns", len(got))
	}
	if !s.Exists("expert1") {
		t.Fatal("Log should create the log")
	}
	// Idempotent.
	if got := s.Log("expert1"); len(got) != 0 {
		t.Fatalf("expected empty log on second call, got %d turns", len(got))
	}
}

func TestStore_ViewDoesNotCreate(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if got := s.View("expert4"); len(got) != 0 {
		t.Fatalf("View of missing log = %v, want empty", got)
	}
	if s.Exists("expert4") {
		t.Fatal("View must not create a log")
	}
	if snap := s.Snapshot(); len(snap) != 0 {
		t.Fatalf("snapshot = %v, want empty", snap)
	}

	_ = s.Append("expert4", Turn{Role: RoleUser, Content: "q"})
	view := s.View("expert4")
	if len(view) != 1 || view[0].Content != "q" {
		t.Fatalf("View = %+v, want the appended turn", view)
	}
	view[0].Content = "changed"
	if s.View("expert4")[0].Content != "q" {
		t.Fatal("View returned a shared slice")
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))

	if err := s.Append("expert2", Turn{Role: RoleUser, Content: "hi"}, Turn{Role: RoleAssistant, Content: "hello"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append("expert2", Turn{Role: RoleUser, Content: "bye"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	log := s.Log("expert2")
	want := []string{"hi", "hello", "bye"}
	if len(log) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(log))
	}
	for i, w := range want {
		if log[i].Content != w {
			t.Errorf("turn %d: got %q, want %q", i, log[i].Content, w)
		}
		if log[i].ID == "" {
			t.Errorf("turn %d: expected generated ID", i)
		}
		if !log[i].CreatedAt.Equal(fixed) {
			t.Errorf("turn %d: CreatedAt = %v, want %v", i, log[i].CreatedAt, fixed)
		}
	}
}

func TestStore_AppendStampsNewTurnWithClock(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))

	turn := NewTurn(RoleAssistant, "draft")
	if !turn.CreatedAt.IsZero() {
		t.Fatalf("NewTurn CreatedAt = %v, want zero", turn.CreatedAt)
	}
	if err := s.Append("expert6", NewTurn(RoleUser, "q"), turn); err != nil {
		t.Fatalf("Append: %v", err)
	}
	for i, got := range s.View("expert6") {
		if !got.CreatedAt.Equal(fixed) {
			t.Errorf("turn %d: CreatedAt = %v, want %v", i, got.CreatedAt, fixed)
		}
	}
	if got := s.View("expert6")[1].ID; got != turn.ID {
		t.Errorf("ID = %q, want the one from NewTurn %q", got, turn.ID)
	}
}

func TestStore_AppendRejectsInvalidTurns(t *testing.T) {
	t.Parallel()
	s := NewStore()

	tests := []struct {
		name string
		turn Turn
	}{
		{"inherited", Turn{Role: RoleAssistant, Content: "x", Inherited: true}},
		{"bad role", Turn{Role: "system", Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Append("expert1", Turn{Role: RoleUser, Content: "ok"}, tt.turn); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if s.Len("expert1") != 0 {
		t.Errorf("rejected append must not store anything, got %d turns", s.Len("expert1"))
	}
}

func TestStore_LogReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewStore()
	_ = s.Append("expert1", Turn{Role: RoleUser, Content: "original"})

	log := s.Log("expert1")
	log[0].Content = "mutated"

	if got := s.Log("expert1")[0].Content; got != "original" {
		t.Errorf("store content changed through returned slice: %q", got)
	}
}

func TestStore_LastDoesNotCreate(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if _, ok := s.Last("expert3"); ok {
		t.Fatal("expected no last turn for missing log")
	}
	if s.Exists("expert3") {
		t.Fatal("Last must not create a log")
	}

	_ = s.Append("expert3", Turn{Role: RoleUser, Content: "q"}, Turn{Role: RoleAssistant, Content: "a"})
	last, ok := s.Last("expert3")
	if !ok || last.Content != "a" {
		t.Fatalf("Last = %+v, %v; want content a", last, ok)
	}
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()
	s := NewStore()
	_ = s.Append("expert1", Turn{Role: RoleUser, Content: "one"})

	snap := s.Snapshot()
	snap["expert1"][0].Content = "changed"
	snap["expert9"] = nil

	if reflect.DeepEqual(snap, s.Snapshot()) {
		t.Fatal("snapshot mutation leaked into store")
	}
	if s.Exists("expert9") {
		t.Fatal("snapshot key leaked into store")
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()
	s := NewStore()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append("expert4", Turn{Role: RoleUser, Content: fmt.Sprintf("msg %d", i)})
			_ = s.Log("expert4")
			_, _ = s.Last("expert4")
		}()
	}
	wg.Wait()

	if got := s.Len("expert4"); got != n {
		t.Errorf("expected %d turns, got %d", n, got)
	}
}
