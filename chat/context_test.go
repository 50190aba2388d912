package chat

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/homewright/homewright/stores"
)

// fakeProjectStore serves canned documentation data and can be told to fail
// individual fetches.
type fakeProjectStore struct {
	project  *stores.Project
	rooms    []stores.Room
	items    map[string][]stores.Item

	failProject bool
	failRooms   bool
	failItems   map[string]bool
}

func (f *fakeProjectStore) GetProject(projectID string) (*stores.Project, error) {
	if f.failProject || f.project == nil {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	return f.project, nil
}

func (f *fakeProjectStore) ListRooms(projectID string) ([]stores.Room, error) {
	if f.failRooms {
		return nil, fmt.Errorf("rooms unavailable")
	}
	return f.rooms, nil
}

func (f *fakeProjectStore) ListItems(roomID string) ([]stores.Item, error) {
	if f.failItems[roomID] {
		return nil, fmt.Errorf("items unavailable")
	}
	return f.items[roomID], nil
}

func (f *fakeProjectStore) CreateProject(*stores.Project) error { return nil }
func (f *fakeProjectStore) CreateRoom(*stores.Room) error       { return nil }
func (f *fakeProjectStore) CreateItem(*stores.Item) error       { return nil }

func houseStore() *fakeProjectStore {
	return &fakeProjectStore{
		project: &stores.Project{
			ProjectID: "p1",
			Name:      "Maple Street Build",
			Address:   "12 Maple St",
			Builder:   "Acme Homes",
		},
		rooms: []stores.Room{
			{RoomID: "r1", ProjectID: "p1", Name: "Kitchen"},
			{RoomID: "r2", ProjectID: "p1", Name: "Bathroom"},
		},
		items: map[string][]stores.Item{
			"r1": {
				{ItemID: "i1", RoomID: "r1", Name: "Wall Paint", Brand: "Benjamin Moore", Category: "paint"},
				{ItemID: "i2", RoomID: "r1", Name: "Range Hood", Brand: "Broan", Category: "appliance"},
			},
			"r2": {
				{ItemID: "i3", RoomID: "r2", Name: "Vanity", Brand: "Kohler", Category: "fixture"},
			},
		},
	}
}

func TestBuild_KeywordRelevance(t *testing.T) {
	b := NewContextBuilder(houseStore(), zap.NewNop())
	out := b.Build("p1", "what paint did we use?")

	if !strings.Contains(out, "Wall Paint") {
		t.Error("matching item should be included")
	}
	if strings.Contains(out, "Range Hood") || strings.Contains(out, "Vanity") {
		t.Errorf("non-matching items should be excluded:\n%s", out)
	}
	if !strings.Contains(out, "Project: Maple Street Build") {
		t.Error("project header missing")
	}
	if !strings.Contains(out, "Rooms: Kitchen, Bathroom") {
		t.Error("room list missing")
	}
}

func TestBuild_ShortQueryFallsBack(t *testing.T) {
	b := NewContextBuilder(houseStore(), zap.NewNop())
	// Every word is under three characters, so no keywords survive and all
	// items (fewer than the fallback cap) are included.
	out := b.Build("p1", "is it ok")

	for _, name := range []string{"Wall Paint", "Range Hood", "Vanity"} {
		if !strings.Contains(out, name) {
			t.Errorf("fallback should include %q", name)
		}
	}
}

func TestBuild_NoMatchFallsBackToFirstN(t *testing.T) {
	store := houseStore()
	store.items = map[string][]stores.Item{"r1": nil, "r2": nil}
	for i := 0; i < 15; i++ {
		store.items["r1"] = append(store.items["r1"], stores.Item{
			ItemID: fmt.Sprintf("i%d", i),
			RoomID: "r1",
			Name:   fmt.Sprintf("Fixture %d", i),
		})
	}

	b := NewContextBuilder(store, zap.NewNop())
	out := b.Build("p1", "granite countertop")

	if !strings.Contains(out, "Fixture 0") || !strings.Contains(out, "Fixture 9") {
		t.Error("fallback should include the first items in stored order")
	}
	if strings.Contains(out, "Fixture 10") {
		t.Error("fallback should stop at the cap")
	}
}

func TestBuild_TruncatesAtBudget(t *testing.T) {
	store := houseStore()
	long := strings.Repeat("durable oak flooring with custom stain ", 40)
	for i := 0; i < 20; i++ {
		store.items["r1"] = append(store.items["r1"], stores.Item{
			ItemID: fmt.Sprintf("big%d", i),
			RoomID: "r1",
			Name:   fmt.Sprintf("Flooring %d", i),
			Notes:  long,
		})
	}

	b := NewContextBuilder(store, zap.NewNop())
	out := b.Build("p1", "flooring")

	if len(out) > contextCharLimit+len(truncationMarker) {
		t.Errorf("output length %d exceeds budget plus marker", len(out))
	}
	if !strings.HasSuffix(out, truncationMarker) {
		t.Error("truncated output should end with the marker")
	}
}

func TestBuild_DegradesOnFetchFailures(t *testing.T) {
	store := houseStore()
	store.failProject = true
	store.failItems = map[string]bool{"r2": true}

	b := NewContextBuilder(store, zap.NewNop())
	out := b.Build("p1", "paint")

	if strings.Contains(out, "Maple Street Build") {
		t.Error("failed project fetch should omit the header")
	}
	if !strings.Contains(out, "Wall Paint") {
		t.Error("items from healthy rooms should still be included")
	}
	if strings.Contains(out, "Vanity") {
		t.Error("items from the failed room should be absent")
	}
}

func TestBuild_EmptyProject(t *testing.T) {
	store := &fakeProjectStore{failProject: true}
	b := NewContextBuilder(store, zap.NewNop())

	if out := b.Build("missing", "anything"); out != "" {
		t.Errorf("empty project should yield empty context, got %q", out)
	}
}
