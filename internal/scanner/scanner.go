// Package scanner discovers a wallet's borrow positions on a lending
// protocol. One Scanner exists per protocol; the Registry picks the right one
// from the address shape.
package scanner

import (
	"context"
	"fmt"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// Scanner discovers borrow positions for one protocol.
type Scanner interface {
	// Protocol identifies which protocol this scanner covers.
	Protocol() domain.Protocol

	// FullScan queries every known market (or network) for the wallet's
	// positions. progress, when non-nil, is called after each market with
	// (completed, total).
	FullScan(ctx context.Context, address string, progress domain.ProgressFunc) ([]domain.Position, error)

	// TargetedScan queries only the given markets. An empty list returns an
	// empty result without issuing any queries.
	TargetedScan(ctx context.Context, address string, markets []string) ([]domain.Position, error)
}

// marketCatalog is the slice of the catalog the scanners need.
type marketCatalog interface {
	GetOrFetch(ctx context.Context, key string) ([]domain.Market, error)
}

// Registry routes addresses to scanners by protocol.
type Registry struct {
	scanners map[domain.Protocol]Scanner
}

// NewRegistry builds a registry from the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	m := make(map[domain.Protocol]Scanner, len(scanners))
	for _, s := range scanners {
		m[s.Protocol()] = s
	}
	return &Registry{scanners: m}
}

// ForProtocol returns the scanner for a protocol.
func (r *Registry) ForProtocol(p domain.Protocol) (Scanner, error) {
	s, ok := r.scanners[p]
	if !ok {
		return nil, fmt.Errorf("scanner: no scanner for protocol %q", p)
	}
	return s, nil
}

// ForAddress detects the protocol from the address shape and returns the
// matching scanner.
func (r *Registry) ForAddress(address string) (Scanner, error) {
	p, err := domain.DetectProtocol(address)
	if err != nil {
		return nil, err
	}
	return r.ForProtocol(p)
}
