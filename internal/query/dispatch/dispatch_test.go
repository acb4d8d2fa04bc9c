package dispatch

import (
	"testing"

	"github.com/google/uuid"

	"vitigo_crm_backend/internal/identity/repository"
)

func staffPool(n int) []repository.User {
	pool := make([]repository.User, n)
	for i := range pool {
		pool[i] = repository.User{ID: uuid.New(), Email: "staff@example.com", IsActive: true}
	}
	return pool
}

func TestRandomEmptyPool(t *testing.T) {
	if got := (Random{}).Pick(nil); got != nil {
		t.Fatalf("Pick(nil) = %v, want nil", got)
	}
}

func TestRandomPicksFromPool(t *testing.T) {
	pool := staffPool(5)
	members := make(map[uuid.UUID]bool, len(pool))
	for _, u := range pool {
		members[u.ID] = true
	}
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 200; i++ {
		u := (Random{}).Pick(pool)
		if u == nil || !members[u.ID] {
			t.Fatalf("picked user outside the pool: %v", u)
		}
		seen[u.ID] = true
	}
	// 200 draws over 5 members; all should appear.
	if len(seen) != len(pool) {
		t.Errorf("random pick covered %d of %d pool members", len(seen), len(pool))
	}
}

func TestRoundRobinCycles(t *testing.T) {
	pool := staffPool(3)
	rr := &RoundRobin{}
	for round := 0; round < 2; round++ {
		for i := range pool {
			u := rr.Pick(pool)
			if u.ID != pool[i].ID {
				t.Fatalf("round %d pick %d = %s, want %s", round, i, u.ID, pool[i].ID)
			}
		}
	}
}

func TestForName(t *testing.T) {
	if got := ForName("round_robin").Name(); got != "round_robin" {
		t.Errorf("ForName(round_robin).Name() = %q", got)
	}
	if got := ForName("random").Name(); got != "random" {
		t.Errorf("ForName(random).Name() = %q", got)
	}
	if got := ForName("bogus").Name(); got != "random" {
		t.Errorf("ForName(bogus).Name() = %q, want random fallback", got)
	}
}
