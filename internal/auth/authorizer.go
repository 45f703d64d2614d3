// Package auth provides the capability check guarding privileged operations
// (market creation, resolution, fee sweep). The check is pluggable so a
// single static key can later be replaced by a multi-admin or governance
// scheme without touching the ledger core.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/openpredict/marketd/internal/domain"
)

// Capability names a privileged operation.
type Capability string

const (
	CapCreateMarket  Capability = "market:create"
	CapResolveMarket Capability = "market:resolve"
	CapSweepFees     Capability = "treasury:sweep"
)

// Authorizer decides whether the presented credential may exercise a
// capability. Implementations must fail closed with domain.ErrUnauthorized.
type Authorizer interface {
	Authorize(ctx context.Context, credential string, cap Capability) error
}

// StaticKeyAuthorizer grants every capability to the holder of a single
// administrator key. Comparison is constant time.
type StaticKeyAuthorizer struct {
	key string
}

// NewStaticKey creates an authorizer around the given administrator key.
func NewStaticKey(key string) (*StaticKeyAuthorizer, error) {
	if key == "" {
		return nil, fmt.Errorf("auth: administrator key must not be empty")
	}
	return &StaticKeyAuthorizer{key: key}, nil
}

// Authorize grants the capability when the credential matches the key.
func (a *StaticKeyAuthorizer) Authorize(ctx context.Context, credential string, cap Capability) error {
	if credential == "" {
		return fmt.Errorf("auth: missing credential for %s: %w", cap, domain.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(a.key)) != 1 {
		return fmt.Errorf("auth: credential rejected for %s: %w", cap, domain.ErrUnauthorized)
	}
	return nil
}

// AllowAll grants every capability to every caller. Test and development use
// only.
type AllowAll struct{}

// Authorize always succeeds.
func (AllowAll) Authorize(ctx context.Context, credential string, cap Capability) error {
	return nil
}

var (
	_ Authorizer = (*StaticKeyAuthorizer)(nil)
	_ Authorizer = AllowAll{}
)
