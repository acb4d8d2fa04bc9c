package service

import (
	"fmt"

	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/apperr"
)

// allowedEdges encodes the lifecycle state machine. WAITING is a parking
// state reachable from NEW or IN_PROGRESS; a NEW query must pass through
// IN_PROGRESS or WAITING before it can be resolved or closed. Terminal
// states have no outgoing edges here, reopening is a dedicated operation.
var allowedEdges = map[transport.Status][]transport.Status{
	transport.StatusNew:        {transport.StatusInProgress, transport.StatusWaiting},
	transport.StatusInProgress: {transport.StatusWaiting, transport.StatusResolved, transport.StatusClosed},
	transport.StatusWaiting:    {transport.StatusInProgress, transport.StatusResolved, transport.StatusClosed},
	transport.StatusResolved:   {},
	transport.StatusClosed:     {},
}

// ValidateTransition reports whether moving from one status to the other is
// a legal lifecycle edge.
// Illegal transitions leave the query untouched.
func ValidateTransition(from, to transport.Status) error {
	if from == to {
		return invalidTransition(from, to)
	}
	for _, next := range allowedEdges[from] {
		if next == to {
			return nil
		}
	}
	return invalidTransition(from, to)
}

func invalidTransition(from, to transport.Status) error {
	return apperr.Conflict(fmt.Sprintf("invalid transition from %s to %s", from, to))
}

// IsInvalidTransition reports whether err came from a rejected lifecycle
// transition.
func IsInvalidTransition(err error) bool {
	return apperr.GetKind(err) == apperr.KindConflict
}
