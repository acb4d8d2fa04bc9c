// Package dispatch selects an assignee for new queries from the pool of
// active staff users.
package dispatch

import (
	"math/rand/v2"
	"sync"

	"vitigo_crm_backend/internal/identity/repository"
)

// StaffRoles is the default set of role names eligible for assignment.
var StaffRoles = []string{"STAFF", "NURSE", "DOCTOR", "SUPPORT_STAFF", "MEDICAL_ASSISTANT", "ADMINISTRATOR"}

// Strategy picks one user from a non-empty pool. Implementations must be
// safe for concurrent use.
type Strategy interface {
	Name() string
	Pick(pool []repository.User) *repository.User
}

// Random picks uniformly at random from the pool.
type Random struct{}

func (Random) Name() string { return "random" }

func (Random) Pick(pool []repository.User) *repository.User {
	if len(pool) == 0 {
		return nil
	}
	return &pool[rand.IntN(len(pool))]
}

// RoundRobin cycles through the pool in order. The cursor survives pool
// reshuffles only by index, which is good enough for a small staff list.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

func (*RoundRobin) Name() string { return "round_robin" }

func (r *RoundRobin) Pick(pool []repository.User) *repository.User {
	if len(pool) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &pool[r.next%len(pool)]
	r.next++
	return u
}

// ForName returns the strategy matching the configured name, defaulting to
// Random for unknown values.
func ForName(name string) Strategy {
	if name == "round_robin" {
		return &RoundRobin{}
	}
	return Random{}
}
