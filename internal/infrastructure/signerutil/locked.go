package signerutil

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/disperse-network/disperse-daemon/internal/core/ports"
)

// LockedSigner decorates a ports.Signer with mutual exclusion and a per-call
// timeout. Hardware transports handle one APDU exchange at a time; concurrent
// scans and signing sessions must not interleave on the wire.
type LockedSigner struct {
	inner       ports.Signer
	mtx         sync.Mutex
	callTimeout time.Duration
}

// NewLockedSigner wraps the given signer. A non-positive timeout disables the
// per-call deadline.
func NewLockedSigner(inner ports.Signer, callTimeout time.Duration) *LockedSigner {
	return &LockedSigner{
		inner:       inner,
		callTimeout: callTimeout,
	}
}

var _ ports.Signer = (*LockedSigner)(nil)

func (s *LockedSigner) GetAddress(
	ctx context.Context, derivationPath string,
) (common.Address, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.GetAddress(ctx, derivationPath)
}

func (s *LockedSigner) SignAndBroadcast(
	ctx context.Context, req ports.SignRequest,
) (common.Hash, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.inner.SignAndBroadcast(ctx, req)
}

func (s *LockedSigner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}
