package registry

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGroupLifecycle(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec, err := s.CreateGroup("123@g.us", "בוט 972545460223", "972545460223", created)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !rec.Active() {
		t.Fatalf("new group not active: %+v", rec)
	}

	found, err := s.FindActiveGroupFor("972545460223")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if found == nil || found.GroupID != "123@g.us" {
		t.Fatalf("find active = %+v", found)
	}
	if !found.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", found.CreatedAt, created)
	}

	left := created.Add(time.Hour)
	if err := s.MarkGroupInactive("123@g.us", left); err != nil {
		t.Fatalf("mark inactive: %v", err)
	}
	found, err = s.FindActiveGroupFor("972545460223")
	if err != nil {
		t.Fatalf("find after deactivate: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no active group, got %+v", found)
	}

	got, err := s.GetGroup("123@g.us")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusInactive || got.LeftAt == nil {
		t.Fatalf("deactivated record = %+v", got)
	}
}

func TestReactivateGroup(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	if _, err := s.CreateGroup("g1@g.us", "old", "972545460223", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkGroupInactive("g1@g.us", now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := s.ReactivateGroup("g1@g.us", "new name", now.Add(time.Minute)); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	got, err := s.GetGroup("g1@g.us")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusActive || got.Name != "new name" {
		t.Fatalf("reactivated record = %+v", got)
	}
	if got.ReactivatedAt == nil || got.LeftAt != nil {
		t.Fatalf("timestamps = leftAt %v reactivatedAt %v", got.LeftAt, got.ReactivatedAt)
	}
}

func TestMarkInactiveUnknownGroup(t *testing.T) {
	s := openTestStore(t)
	if err := s.MarkGroupInactive("missing@g.us", time.Now()); err == nil {
		t.Fatal("expected error for unknown group")
	}
}

func TestListActiveGroups(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	for _, id := range []string{"a@g.us", "b@g.us", "c@g.us"} {
		if _, err := s.CreateGroup(id, "g "+id, "phone-"+id, now); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		now = now.Add(time.Second)
	}
	if err := s.MarkGroupInactive("b@g.us", now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := s.ListActiveGroups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active count = %d, want 2", len(active))
	}
	for _, rec := range active {
		if rec.GroupID == "b@g.us" {
			t.Fatalf("deactivated group listed: %+v", rec)
		}
	}
}

func TestMappingsUpsert(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.GetMapping("27608385368236@lid"); err != nil || ok {
		t.Fatalf("get before put = ok %v, err %v", ok, err)
	}
	if err := s.PutMapping("27608385368236@lid", "972545460223"); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Idempotent upsert, second write replaces.
	if err := s.PutMapping("27608385368236@lid", "972500000000"); err != nil {
		t.Fatalf("second put: %v", err)
	}

	phone, ok, err := s.GetMapping("27608385368236@lid")
	if err != nil || !ok {
		t.Fatalf("get = ok %v, err %v", ok, err)
	}
	if phone != "972500000000" {
		t.Fatalf("phone = %q, want last write", phone)
	}

	all, err := s.AllMappings()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("mappings = %v, want single entry", all)
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.CreateGroup("g@g.us", "name", "972545460223", time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.PutMapping("1@lid", "972545460223"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if rec, err := s.FindActiveGroupFor("972545460223"); err != nil || rec == nil {
		t.Fatalf("group lost across reopen: %+v, %v", rec, err)
	}
	if _, ok, err := s.GetMapping("1@lid"); err != nil || !ok {
		t.Fatalf("mapping lost across reopen: ok %v, err %v", ok, err)
	}
}
