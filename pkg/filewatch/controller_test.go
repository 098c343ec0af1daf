package filewatch

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
	"github.com/jmorillo42/iron-dome/pkg/baseline"
)

// scriptProber serves whatever baseline the test assigned to a path; a path
// with no assignment probes as gone.
type scriptProber map[string]baseline.Baseline

func (p scriptProber) Probe(path string) (baseline.Baseline, bool) {
	b, ok := p[path]
	return b, ok
}

func newTestController(p scriptProber) (*Controller, *baseline.Store, chan alert.Event) {
	store := baseline.NewStore()
	events := make(chan alert.Event, 64)
	log := logrus.New()
	c := NewController(store, p, events, log, DefaultEntropyLimit)
	return c, store, events
}

// drain collects the pending events, keyed by kind.
func drain(events chan alert.Event) map[alert.Kind][]alert.Event {
	out := make(map[alert.Kind][]alert.Event)
	for {
		select {
		case ev := <-events:
			out[ev.Kind] = append(out[ev.Kind], ev)
		default:
			return out
		}
	}
}

func TestController_Created(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.3, Type: "text/plain"}}
	c, store, events := newTestController(p)

	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})

	b, ok := store.Get("/w/f.txt")
	if !ok || b.Entropy != 0.3 {
		t.Errorf("store after create = %+v, %v", b, ok)
	}
	got := drain(events)
	if len(got[alert.KindFileCreated]) != 1 {
		t.Errorf("created events = %d, want 1", len(got[alert.KindFileCreated]))
	}
}

func TestController_Closed_NoStateChange(t *testing.T) {
	p := scriptProber{}
	c, store, events := newTestController(p)

	c.Handle(Event{Op: OpClosed, Path: "/w/f.txt"})

	if store.Len() != 0 {
		t.Error("close must not change the store")
	}
	got := drain(events)
	if len(got[alert.KindFileClosed]) != 1 {
		t.Errorf("closed events = %d, want 1", len(got[alert.KindFileClosed]))
	}
}

func TestController_EntropyJumpWarns(t *testing.T) {
	// Baseline 0.10, re-measure 0.50, same type: exactly the entropy
	// warning fires.
	p := scriptProber{"/w/f.txt": {Entropy: 0.10, Type: "text/plain"}}
	c, store, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})
	drain(events)

	p["/w/f.txt"] = baseline.Baseline{Entropy: 0.50, Type: "text/plain"}
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})

	got := drain(events)
	if len(got[alert.KindEntropyJump]) != 1 {
		t.Fatalf("entropy warnings = %d, want 1", len(got[alert.KindEntropyJump]))
	}
	if len(got[alert.KindTypeChange]) != 0 {
		t.Errorf("type warnings = %d, want 0", len(got[alert.KindTypeChange]))
	}
	if msg := got[alert.KindEntropyJump][0].Message; msg == "" || !strings.Contains(msg, "40.00%") {
		t.Errorf("entropy message = %q, want 40.00%% increase", msg)
	}
	if b, _ := store.Get("/w/f.txt"); b.Entropy != 0.50 {
		t.Errorf("baseline not replaced: %v", b.Entropy)
	}
}

func TestController_EntropyDropIsSilent(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.80, Type: "text/plain"}}
	c, _, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})
	drain(events)

	p["/w/f.txt"] = baseline.Baseline{Entropy: 0.10, Type: "text/plain"}
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})

	got := drain(events)
	if len(got[alert.KindEntropyJump]) != 0 {
		t.Errorf("entropy drop fired %d warnings, want 0", len(got[alert.KindEntropyJump]))
	}
}

func TestController_TypeChangeWarns(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.10, Type: "text/plain"}}
	c, _, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})
	drain(events)

	p["/w/f.txt"] = baseline.Baseline{Entropy: 0.10, Type: "application/octet-stream"}
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})

	got := drain(events)
	if len(got[alert.KindTypeChange]) != 1 {
		t.Fatalf("type warnings = %d, want 1", len(got[alert.KindTypeChange]))
	}
	if len(got[alert.KindEntropyJump]) != 0 {
		t.Errorf("entropy warnings = %d, want 0", len(got[alert.KindEntropyJump]))
	}
}

func TestController_BothWarningsMayFire(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.10, Type: "text/plain"}}
	c, _, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})
	drain(events)

	p["/w/f.txt"] = baseline.Baseline{Entropy: 0.95, Type: "application/octet-stream"}
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})

	got := drain(events)
	if len(got[alert.KindEntropyJump]) != 1 || len(got[alert.KindTypeChange]) != 1 {
		t.Errorf("warnings = %d entropy, %d type; want 1 and 1",
			len(got[alert.KindEntropyJump]), len(got[alert.KindTypeChange]))
	}
}

func TestController_DeleteThenModifyIsNoop(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.10, Type: "text/plain"}}
	c, store, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})

	c.Handle(Event{Op: OpDeleted, Path: "/w/f.txt"})
	if _, ok := store.Get("/w/f.txt"); ok {
		t.Fatal("delete should remove the entry")
	}

	drain(events)
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})
	if _, ok := store.Get("/w/f.txt"); ok {
		t.Error("modify on untracked path must stay a no-op")
	}
	got := drain(events)
	if len(got[alert.KindEntropyJump])+len(got[alert.KindTypeChange]) != 0 {
		t.Error("modify on untracked path must not warn")
	}
}

func TestController_DeleteUntrackedIsNoop(t *testing.T) {
	c, store, _ := newTestController(scriptProber{})
	c.Handle(Event{Op: OpDeleted, Path: "/w/ghost"})
	if store.Len() != 0 {
		t.Error("store should stay empty")
	}
}

func TestController_ModifiedVanishedFileRemoves(t *testing.T) {
	p := scriptProber{"/w/f.txt": {Entropy: 0.10, Type: "text/plain"}}
	c, store, _ := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/f.txt"})

	// The file vanishes between the event and the re-probe.
	delete(p, "/w/f.txt")
	c.Handle(Event{Op: OpModified, Path: "/w/f.txt"})
	if _, ok := store.Get("/w/f.txt"); ok {
		t.Error("vanished file should be dropped from the store")
	}
}

func TestController_MoveTransfersBaseline(t *testing.T) {
	// Rename a -> b with no content change: baseline carries over, no
	// warnings.
	p := scriptProber{"/w/a": {Entropy: 0.10, Type: "text/plain"}}
	c, store, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/a"})
	drain(events)

	delete(p, "/w/a")
	p["/w/b"] = baseline.Baseline{Entropy: 0.10, Type: "text/plain"}
	c.Handle(Event{Op: OpMoved, Path: "/w/b", OldPath: "/w/a"})

	if _, ok := store.Get("/w/a"); ok {
		t.Error("old path should be untracked after move")
	}
	b, ok := store.Get("/w/b")
	if !ok || b.Entropy != 0.10 || b.Type != "text/plain" {
		t.Errorf("moved baseline = %+v, %v", b, ok)
	}
	got := drain(events)
	if len(got[alert.KindEntropyJump])+len(got[alert.KindTypeChange]) != 0 {
		t.Error("unchanged content must not warn across a move")
	}
}

func TestController_MoveComparesAgainstCarriedBaseline(t *testing.T) {
	p := scriptProber{"/w/a": {Entropy: 0.10, Type: "text/plain"}}
	c, _, events := newTestController(p)
	c.Handle(Event{Op: OpCreated, Path: "/w/a"})
	drain(events)

	delete(p, "/w/a")
	p["/w/b"] = baseline.Baseline{Entropy: 0.90, Type: "text/plain"}
	c.Handle(Event{Op: OpMoved, Path: "/w/b", OldPath: "/w/a"})

	got := drain(events)
	if len(got[alert.KindEntropyJump]) != 1 {
		t.Errorf("entropy warnings = %d, want 1 against carried baseline", len(got[alert.KindEntropyJump]))
	}
}

func TestController_MoveFromUntrackedIsCreate(t *testing.T) {
	p := scriptProber{"/w/b": {Entropy: 0.40, Type: "text/plain"}}
	c, store, events := newTestController(p)

	c.Handle(Event{Op: OpMoved, Path: "/w/b", OldPath: "/elsewhere/a"})

	b, ok := store.Get("/w/b")
	if !ok || b.Entropy != 0.40 {
		t.Errorf("moved-in baseline = %+v, %v", b, ok)
	}
	got := drain(events)
	if len(got[alert.KindEntropyJump])+len(got[alert.KindTypeChange]) != 0 {
		t.Error("a fresh move-in has no old baseline to warn against")
	}
}
