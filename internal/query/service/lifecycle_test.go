package service

import (
	"testing"

	"vitigo_crm_backend/internal/query/transport"
)

func TestValidateTransitionLegalEdges(t *testing.T) {
	legal := []struct{ from, to transport.Status }{
		{transport.StatusNew, transport.StatusInProgress},
		{transport.StatusNew, transport.StatusWaiting},
		{transport.StatusInProgress, transport.StatusWaiting},
		{transport.StatusInProgress, transport.StatusResolved},
		{transport.StatusInProgress, transport.StatusClosed},
		{transport.StatusWaiting, transport.StatusInProgress},
		{transport.StatusWaiting, transport.StatusResolved},
		{transport.StatusWaiting, transport.StatusClosed},
	}
	for _, edge := range legal {
		if err := ValidateTransition(edge.from, edge.to); err != nil {
			t.Errorf("%s -> %s rejected: %v", edge.from, edge.to, err)
		}
	}
}

func TestValidateTransitionIllegalEdges(t *testing.T) {
	illegal := []struct{ from, to transport.Status }{
		{transport.StatusNew, transport.StatusResolved},
		{transport.StatusNew, transport.StatusClosed},
		{transport.StatusResolved, transport.StatusInProgress},
		{transport.StatusResolved, transport.StatusNew},
		{transport.StatusClosed, transport.StatusInProgress},
		{transport.StatusClosed, transport.StatusResolved},
		{transport.StatusInProgress, transport.StatusNew},
		{transport.StatusWaiting, transport.StatusNew},
		{transport.StatusNew, transport.StatusNew},
	}
	for _, edge := range illegal {
		err := ValidateTransition(edge.from, edge.to)
		if err == nil {
			t.Errorf("%s -> %s accepted, want rejection", edge.from, edge.to)
			continue
		}
		if !IsInvalidTransition(err) {
			t.Errorf("%s -> %s: error not recognized as invalid transition: %v", edge.from, edge.to, err)
		}
	}
}
