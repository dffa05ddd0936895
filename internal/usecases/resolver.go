package usecases

import (
	"context"
	"crypto/subtle"

	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
)

// TenantResolver maps inbound identities to tenants: the channel identifier
// (phone_number_id) for signed deliveries, verification tokens for the
// handshake and the manual-trigger ingress.
type TenantResolver struct {
	tenants           interfaces.TenantStore
	globalVerifyToken string // env-level token, checked before tenant tokens
	log               zerolog.Logger
}

func NewTenantResolver(tenants interfaces.TenantStore, globalVerifyToken string, log zerolog.Logger) *TenantResolver {
	return &TenantResolver{
		tenants:           tenants,
		globalVerifyToken: globalVerifyToken,
		log:               log,
	}
}

// ResolveByPhoneNumberID returns the tenant registered for the channel
// identifier, or (nil, nil) when none is configured.
func (r *TenantResolver) ResolveByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.Tenant, error) {
	if phoneNumberID == "" {
		return nil, nil
	}
	return r.tenants.GetByPhoneNumberID(ctx, phoneNumberID)
}

// CheckVerifyToken validates a handshake token. The global token is the
// fast path; otherwise every tenant's stored token is tried. The result is
// a bare bool so callers cannot leak whether any particular tenant exists.
func (r *TenantResolver) CheckVerifyToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if tokenEqual(token, r.globalVerifyToken) {
		return true
	}

	tenants, err := r.tenants.List(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("verify token: listing tenants failed")
		return false
	}
	for i := range tenants {
		if tokenEqual(token, tenants[i].VerifyToken) {
			return true
		}
	}
	return false
}

// CheckTenantToken validates a token against a single tenant. Used by the
// manual-trigger ingress, which already knows the owning tenant and must
// not fall back to the global token.
func (r *TenantResolver) CheckTenantToken(ctx context.Context, tenantID, token string) bool {
	if token == "" || tenantID == "" {
		return false
	}
	tenant, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil {
		r.log.Error().Err(err).Str("tenant_id", tenantID).Msg("tenant token: lookup failed")
		return false
	}
	if tenant == nil {
		return false
	}
	return tokenEqual(token, tenant.VerifyToken)
}

func tokenEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
