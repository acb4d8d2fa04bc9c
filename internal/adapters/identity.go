// Package adapters contains anti-corruption adapters between bounded
// contexts, so each module depends only on interfaces it defines itself.
package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"

	identityrepo "vitigo_crm_backend/internal/identity/repository"
	identityservice "vitigo_crm_backend/internal/identity/service"
	queryservice "vitigo_crm_backend/internal/query/service"
)

// IdentityResolverAdapter lets the query service resolve contacts through
// the identity module without importing it.
type IdentityResolverAdapter struct {
	svc *identityservice.Service
}

// NewIdentityResolverAdapter creates the adapter.
func NewIdentityResolverAdapter(svc *identityservice.Service) *IdentityResolverAdapter {
	return &IdentityResolverAdapter{svc: svc}
}

// ResolveInTx implements queryservice.IdentityResolver.
func (a *IdentityResolverAdapter) ResolveInTx(ctx context.Context, tx pgx.Tx, in queryservice.ResolveInput) (*identityrepo.User, bool, error) {
	return a.svc.ResolveInTx(ctx, tx, identityservice.ResolveInput{
		Email:       in.Email,
		Phone:       in.Phone,
		CountryCode: in.CountryCode,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
	})
}

var _ queryservice.IdentityResolver = (*IdentityResolverAdapter)(nil)
