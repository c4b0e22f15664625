package device

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testMetadata builds a metadata map with one enabled switch per id.
func testMetadata(ids ...string) map[string]Metadata {
	out := make(map[string]Metadata, len(ids))
	for _, id := range ids {
		out[id] = Metadata{ID: id, Name: "dev " + id, DeviceType: TypeSwitch, Enabled: true, Attributes: Attributes{}}
	}
	return out
}

// =============================================================================
// Metadata side
// =============================================================================

func TestCache_New(t *testing.T) {
	c := NewCache()

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true before any fetch")
	}
	if got := c.LiveState("1"); got == nil || len(got) != 0 {
		t.Errorf("LiveState() = %v, want empty", got)
	}
}

func TestCache_ReplaceMetadata(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1", "2"))

	if _, ok := c.Metadata("1"); !ok {
		t.Error("Metadata(1) missing")
	}

	c.ReplaceMetadata(testMetadata("2", "3"))

	if _, ok := c.Metadata("1"); ok {
		t.Error("Metadata(1) still present after replacement without it")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	got := make([]string, 0)
	for _, m := range c.Devices() {
		got = append(got, m.ID)
	}
	if diff := cmp.Diff([]string{"2", "3"}, got); diff != "" {
		t.Errorf("Devices() order mismatch (-want +got):\n%s", diff)
	}

	c.ReplaceMetadata(nil)
	if c.Len() != 0 {
		t.Errorf("Len() after nil replace = %d", c.Len())
	}
}

// =============================================================================
// Live-state side
// =============================================================================

func TestCache_ApplyState_Overwrites(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1"))

	c.ApplyState("1", LiveState{"state": true, "brightness": float64(100)})
	c.ApplyState("1", LiveState{"state": false})

	want := LiveState{"state": false}
	if diff := cmp.Diff(want, c.LiveState("1")); diff != "" {
		t.Errorf("LiveState mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_ApplyState_Idempotent(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1"))

	msg := LiveState{"state": true, "brightness": float64(80)}
	c.ApplyState("1", msg)
	once := c.LiveState("1").Clone()
	c.ApplyState("1", msg)

	if diff := cmp.Diff(once, c.LiveState("1")); diff != "" {
		t.Errorf("second apply changed state (-once +twice):\n%s", diff)
	}
}

func TestCache_ApplyState_UnknownDropped(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1"))

	if c.ApplyState("99", LiveState{"state": true}) {
		t.Error("ApplyState(unknown) = true")
	}
	if c.HasLiveState("99") {
		t.Error("live state entry created for unknown id")
	}
}

func TestCache_ApplyState_NilBecomesEmpty(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1"))

	if !c.ApplyState("1", nil) {
		t.Fatal("ApplyState(nil) = false")
	}
	if got := c.LiveState("1"); got == nil || len(got) != 0 {
		t.Errorf("LiveState() = %v, want empty", got)
	}
}

func TestCache_LiveStateSurvivesMetadataReplacement(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1"))
	c.ApplyState("1", LiveState{"state": true})

	// Device disappears: the entry is inert but not purged.
	c.ReplaceMetadata(testMetadata("2"))
	if got := c.LiveState("1"); len(got) != 0 {
		t.Errorf("LiveState(1) = %v while absent from metadata, want empty", got)
	}
	if !c.HasLiveState("1") {
		t.Error("live state entry purged on metadata replacement")
	}

	// Device returns: its last state is visible again.
	c.ReplaceMetadata(testMetadata("1", "2"))
	if v, _ := c.LiveState("1").Bool("state"); !v {
		t.Error("LiveState(1) lost after device returned")
	}
}

func TestCache_LastUpdateSuccess(t *testing.T) {
	c := NewCache()
	c.SetLastUpdateSuccess(true)
	if !c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after set true")
	}
	c.SetLastUpdateSuccess(false)
	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after set false")
	}
}

// TestCache_ConcurrentReads runs readers against one writer; meaningful under -race.
func TestCache_ConcurrentReads(t *testing.T) {
	c := NewCache()
	c.ReplaceMetadata(testMetadata("1", "2"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, m := range c.Devices() {
					_ = c.LiveState(m.ID)
				}
				_ = c.LastUpdateSuccess()
			}
		}()
	}

	for i := range 500 {
		if i%50 == 0 {
			c.ReplaceMetadata(testMetadata("1", "2", fmt.Sprint(i)))
		}
		c.ApplyState("1", LiveState{"n": float64(i)})
		c.SetLastUpdateSuccess(i%2 == 0)
	}
	close(stop)
	wg.Wait()

	if n, _ := c.LiveState("1").Int("n"); n != 499 {
		t.Errorf("final n = %d, want 499", n)
	}
}
