package hotctx_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/hotctx"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/inheritance"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/memory"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

var referenceTable = map[string][]string{
	"expert1": {"expert1"},
	"expert2": {"expert1"},
	"expert3": {"expert2"},
	"expert4": {"expert2", "expert3"},
	"expert5": {"expert1", "expert2", "expert4"},
	"expert6": {"expert3", "expert2", "expert4"},
	"expert7": {"expert3", "expert2", "expert4"},
	"expert8": {"expert2", "expert3"},
}

type fixture struct {
	sessions *session.Store
	memory   *memory.Store
	composer *hotctx.Composer
}

func newFixture() fixture {
	g := inheritance.New(referenceTable)
	s := session.NewStore()
	m := memory.NewStore(g)
	return fixture{sessions: s, memory: m, composer: hotctx.NewComposer(s, g, m)}
}

func (f fixture) exchange(t *testing.T, id, user, assistant string) {
	t.Helper()
	err := f.sessions.Append(id,
		session.Turn{Role: session.RoleUser, Content: user},
		session.Turn{Role: session.RoleAssistant, Content: assistant},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func TestCompose_EmptyStores(t *testing.T) {
	t.Parallel()
	f := newFixture()

	for id := range referenceTable {
		t.Run(id, func(t *testing.T) {
			got, err := f.composer.Compose(context.Background(), id)
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if len(got.History) != 0 {
				t.Errorf("history = %+v, want empty", got.History)
			}
			if got.MemoryDigest != "" {
				t.Errorf("digest = %q, want empty", got.MemoryDigest)
			}
		})
	}
}

func TestCompose_InheritsParentLastTurn(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.exchange(t, "expert2", "who are the users?", "Clinic receptionists.")
	f.exchange(t, "expert3", "list risks", "Data loss and downtime.")
	f.exchange(t, "expert4", "start the SRS", "Section 1 drafted.")

	got, err := f.composer.Compose(context.Background(), "expert4")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	wantContent := []string{
		"start the SRS",
		"Section 1 drafted.",
		"Inherited from expert2: Clinic receptionists.",
		"Inherited from expert3: Data loss and downtime.",
	}
	if len(got.History) != len(wantContent) {
		t.Fatalf("history length = %d, want %d", len(got.History), len(wantContent))
	}
	for i, w := range wantContent {
		if got.History[i].Content != w {
			t.Errorf("history[%d] = %q, want %q", i, got.History[i].Content, w)
		}
	}
	if got.Inherited != 2 {
		t.Errorf("Inherited = %d, want 2", got.Inherited)
	}
	for _, turn := range got.History[2:] {
		if !turn.Inherited || turn.Role != session.RoleAssistant {
			t.Errorf("inherited entry not tagged: %+v", turn)
		}
	}
	if own := got.OwnHistory(); len(own) != 2 {
		t.Errorf("OwnHistory length = %d, want 2", len(own))
	}
}

func TestCompose_ParentWithoutLogContributesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.exchange(t, "expert3", "q", "a")

	got, err := f.composer.Compose(context.Background(), "expert8")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(got.History) != 1 || got.History[0].Content != "Inherited from expert3: a" {
		t.Errorf("history = %+v", got.History)
	}
	if f.sessions.Exists("expert2") {
		t.Error("compose must not create parent logs")
	}
}

func TestCompose_SelfEdgeIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.exchange(t, "expert1", "hello", "hi")

	got, err := f.composer.Compose(context.Background(), "expert1")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got.Inherited != 0 || len(got.History) != 2 {
		t.Errorf("expert1 should see only its own log, got %+v", got.History)
	}
}

func TestCompose_IsReadOnly(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.exchange(t, "expert2", "q", "a")
	f.memory.Record("expert2", "remember the audience is nurses")

	beforeSessions := f.sessions.Snapshot()
	beforeMemory := f.memory.Snapshot()

	for range 3 {
		if _, err := f.composer.Compose(context.Background(), "expert3"); err != nil {
			t.Fatalf("Compose: %v", err)
		}
	}

	if !reflect.DeepEqual(beforeSessions, f.sessions.Snapshot()) {
		t.Error("compose mutated session store")
	}
	if f.sessions.Exists("expert3") {
		t.Error("compose created a log for a session without turns")
	}
	if !reflect.DeepEqual(beforeMemory, f.memory.Snapshot()) {
		t.Error("compose mutated memory store")
	}
}

func TestCompose_IncludesDigest(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.memory.Record("expert2", "the deadline is end of quarter")

	got, err := f.composer.Compose(context.Background(), "expert3")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(got.MemoryDigest, "Inherited from expert2: User said: the deadline is end of quarter") {
		t.Errorf("digest = %q", got.MemoryDigest)
	}
}

func TestCompose_CancelledContext(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.composer.Compose(ctx, "expert1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.sessions.Exists("expert1") {
		t.Error("cancelled compose must not create a log")
	}
}
