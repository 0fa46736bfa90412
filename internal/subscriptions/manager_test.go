package subscriptions

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestManager_VisitFirst(t *testing.T) {
	m := NewManager(3)

	v := m.Visit("s1")
	if !v.IsNew {
		t.Error("first Visit should report IsNew")
	}
	if v.Evicted != "" {
		t.Errorf("first Visit evicted %q, want none", v.Evicted)
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("Subscribed() = %v, want [s1]", got)
	}
}

func TestManager_RevisitPromotesWithoutEviction(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	m.Visit("s3")

	v := m.Visit("s1")
	if v.IsNew {
		t.Error("revisit should not report IsNew")
	}
	if v.Evicted != "" {
		t.Errorf("revisit evicted %q, want none", v.Evicted)
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, []string{"s1", "s3", "s2"}) {
		t.Errorf("Subscribed() = %v, want [s1 s3 s2]", got)
	}
}

func TestManager_RevisitKeepsController(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	ctrl := m.Controller("s1")
	if ctrl == nil {
		t.Fatal("Controller(s1) = nil after Visit")
	}

	m.Visit("s2")
	m.Visit("s1")

	if m.Controller("s1") != ctrl {
		t.Error("revisit replaced the controller")
	}
	if ctrl.Cancelled() {
		t.Error("revisit cancelled the controller")
	}
}

func TestManager_RevisitFrontIsNoOp(t *testing.T) {
	m := NewManager(3)
	m.Visit("s2")
	m.Visit("s1")
	before := m.Subscribed()
	ctrl2 := m.Controller("s2")

	v := m.Visit("s1")
	if v.IsNew {
		t.Error("revisiting the front entry should not report IsNew")
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, before) {
		t.Errorf("order changed from %v to %v", before, got)
	}
	if m.Controller("s2") != ctrl2 {
		t.Error("other entry's controller identity changed")
	}
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	m.Visit("s3")
	c1 := m.Controller("s1")

	v := m.Visit("s4")
	if !v.IsNew {
		t.Error("Visit(s4) should report IsNew")
	}
	if v.Evicted != "s1" {
		t.Errorf("evicted %q, want s1", v.Evicted)
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, []string{"s4", "s3", "s2"}) {
		t.Errorf("Subscribed() = %v, want [s4 s3 s2]", got)
	}
	if !c1.Cancelled() {
		t.Error("evicted session's controller should be cancelled")
	}
	if m.Controller("s1") != nil {
		t.Error("evicted session should no longer be tracked")
	}
}

func TestManager_LeaveFreesSlot(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	m.Visit("s3")
	c2 := m.Controller("s2")

	m.Leave("s2")

	if !c2.Cancelled() {
		t.Error("Leave should cancel the controller")
	}

	v := m.Visit("s4")
	if v.Evicted != "" {
		t.Errorf("Visit after Leave evicted %q, want none", v.Evicted)
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, []string{"s4", "s3", "s1"}) {
		t.Errorf("Subscribed() = %v, want [s4 s3 s1]", got)
	}
}

func TestManager_LeaveUnknownIsNoOp(t *testing.T) {
	m := NewManager(3)

	m.Leave("unknown")
	m.Leave("unknown")

	if got := m.Subscribed(); len(got) != 0 {
		t.Errorf("Subscribed() = %v, want empty", got)
	}

	// Also idempotent for a session that was tracked once.
	m.Visit("s1")
	m.Leave("s1")
	m.Leave("s1")
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_RevisitAfterLeaveGetsFreshController(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	old := m.Controller("s1")
	m.Leave("s1")

	v := m.Visit("s1")
	if !v.IsNew {
		t.Error("visit after leave should be a brand-new entry")
	}
	fresh := m.Controller("s1")
	if fresh == old {
		t.Error("visit after leave reused the cancelled controller")
	}
	if fresh.Cancelled() {
		t.Error("fresh controller should not be cancelled")
	}
	if !old.Cancelled() {
		t.Error("old controller should stay cancelled")
	}
}

func TestManager_CapacityOne(t *testing.T) {
	m := NewManager(1)

	if v := m.Visit("a"); v.Evicted != "" {
		t.Errorf("first visit evicted %q", v.Evicted)
	}
	if v := m.Visit("b"); v.Evicted != "a" {
		t.Errorf("evicted %q, want a", v.Evicted)
	}
	if v := m.Visit("c"); v.Evicted != "b" {
		t.Errorf("evicted %q, want b", v.Evicted)
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Subscribed() = %v, want [c]", got)
	}
}

func TestManager_CapacityCoercedToOne(t *testing.T) {
	m := NewManager(0)
	if m.Capacity() != 1 {
		t.Errorf("Capacity() = %d, want 1", m.Capacity())
	}

	m = NewManager(-5)
	m.Visit("a")
	m.Visit("b")
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestManager_NeverExceedsCapacity(t *testing.T) {
	m := NewManager(3)

	for i := 0; i < 50; i++ {
		m.Visit(fmt.Sprintf("s%d", i%7))
		if m.Len() > 3 {
			t.Fatalf("Len() = %d after visit %d, want <= 3", m.Len(), i)
		}
		if i%5 == 0 {
			m.Leave(fmt.Sprintf("s%d", (i+2)%7))
		}
	}
}

func TestManager_NoDuplicateEntries(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	m.Visit("s1")
	m.Visit("s1")

	seen := make(map[string]bool)
	for _, id := range m.Subscribed() {
		if seen[id] {
			t.Fatalf("duplicate entry for %q", id)
		}
		seen[id] = true
	}
}

func TestManager_ControllerIsPureLookup(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	before := m.Subscribed()

	if m.Controller("s1") == nil {
		t.Fatal("Controller(s1) = nil")
	}
	if m.Controller("missing") != nil {
		t.Error("Controller of untracked session should be nil")
	}
	if got := m.Subscribed(); !reflect.DeepEqual(got, before) {
		t.Errorf("Controller() changed order from %v to %v", before, got)
	}
}

func TestManager_VisitThenControllerReturnsSameHandle(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	first := m.Controller("s1")
	second := m.Controller("s1")
	if first == nil || first != second {
		t.Error("Controller should return the handle created by Visit, stably")
	}
}

func TestManager_EvictionCascade(t *testing.T) {
	// Scenario 5 from the streaming contract: s1's handle is cancelled once
	// three newer sessions have pushed it out.
	m := NewManager(3)
	m.Visit("s1")
	h1 := m.Controller("s1")
	m.Visit("s2")
	m.Visit("s3")
	if h1.Cancelled() {
		t.Fatal("s1 cancelled while still within capacity")
	}
	m.Visit("s4")
	if !h1.Cancelled() {
		t.Error("s1's handle should be cancelled after being pushed out")
	}
}

func TestManager_LeaveAll(t *testing.T) {
	m := NewManager(3)
	m.Visit("s1")
	m.Visit("s2")
	c1 := m.Controller("s1")
	c2 := m.Controller("s2")

	m.LeaveAll()

	if m.Len() != 0 {
		t.Errorf("Len() = %d after LeaveAll, want 0", m.Len())
	}
	if !c1.Cancelled() || !c2.Cancelled() {
		t.Error("LeaveAll should cancel every controller")
	}
}

func TestManager_ConcurrentVisits(t *testing.T) {
	m := NewManager(3)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				switch i % 3 {
				case 0:
					m.Visit(fmt.Sprintf("s%d", (g+i)%5))
				case 1:
					m.Leave(fmt.Sprintf("s%d", i%5))
				default:
					m.Controller(fmt.Sprintf("s%d", i%5))
				}
			}
		}(g)
	}
	wg.Wait()

	if n := m.Len(); n > 3 {
		t.Errorf("Len() = %d after concurrent churn, want <= 3", n)
	}
	ids := m.Subscribed()
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate entry for %q after concurrent churn", id)
		}
		seen[id] = true
	}
}
