package application_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disperse-network/disperse-daemon/internal/core/application"
	"github.com/disperse-network/disperse-daemon/pkg/hdwallet"
)

const testScanRate = 10_000

func newTestScanner(chain *fakeChain, signer *fakeSigner) (*application.AddressScanner, hdwallet.Derivation) {
	deriv := hdwallet.Derivation{
		Mode:     hdwallet.ModeAccountIndex,
		CoinType: hdwallet.DefaultCoinType,
	}
	scanner := application.NewAddressScanner(application.ScannerOpts{
		Chain:         chain,
		Signer:        signer,
		Derivation:    deriv,
		RatePerSecond: testScanRate,
	})
	return scanner, deriv
}

func fundIndex(chain *fakeChain, deriv hdwallet.Derivation, index uint32, wei int64) {
	chain.setBalance(addressForPath(deriv.PathFor(index)), big.NewInt(wei))
}

func TestLookup(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)
	fundIndex(chain, deriv, 3, 1000)

	record, err := scanner.Lookup(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), record.Index)
	assert.Equal(t, deriv.PathFor(3), record.DerivationPath)
	assert.Equal(t, int64(1000), record.Balance.Int64())
	assert.False(t, record.IsEmpty())

	empty, err := scanner.Lookup(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestScanConsecutiveEmpty(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)

	// Funded addresses at 0, 2 and 5 break the empty streak twice before it
	// can reach the target of 3.
	fundIndex(chain, deriv, 0, 100)
	fundIndex(chain, deriv, 2, 100)
	fundIndex(chain, deriv, 5, 100)

	result := scanner.ScanConsecutiveEmpty(context.Background(), 0, 3)

	assert.True(t, result.MetTarget)
	assert.False(t, result.Cancelled)
	// Indexes 0..8: the trailing empty run is 6, 7, 8.
	assert.Equal(t, uint32(8), result.LastScannedIndex)
	require.Len(t, result.EmptyAddresses, 3)
	assert.Equal(t, uint32(6), result.EmptyAddresses[0].Index)
	assert.Equal(t, uint32(8), result.EmptyAddresses[2].Index)
	assert.Len(t, result.Records, 9)
}

func TestScanConsecutiveEmptyFromOffset(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, _ := newTestScanner(chain, signer)

	result := scanner.ScanConsecutiveEmpty(context.Background(), 10, 2)

	assert.True(t, result.MetTarget)
	assert.Equal(t, uint32(11), result.LastScannedIndex)
	require.Len(t, result.EmptyAddresses, 2)
	assert.Equal(t, uint32(10), result.EmptyAddresses[0].Index)
}

func TestScanConsecutiveEmptyStopsOnError(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, _ := newTestScanner(chain, signer)
	chain.balanceErr = errors.New("rpc unavailable")

	result := scanner.ScanConsecutiveEmpty(context.Background(), 0, 5)

	assert.True(t, result.Cancelled)
	assert.False(t, result.MetTarget)
	assert.Empty(t, result.Records)
}

func TestStreamConsecutiveEmpty(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)
	fundIndex(chain, deriv, 1, 100)

	events := make(chan application.ScanEvent, 32)
	go scanner.StreamConsecutiveEmpty(context.Background(), 0, 2, events, nil)

	var found []uint32
	var completed bool
	for event := range events {
		switch e := event.(type) {
		case application.AddressFoundEvent:
			found = append(found, e.Record.Index)
		case application.ScanCompletedEvent:
			assert.True(t, e.Result.MetTarget)
			assert.Equal(t, uint32(3), e.Result.LastScannedIndex)
			completed = true
		}
		if completed {
			break
		}
	}

	assert.Equal(t, []uint32{0, 1, 2, 3}, found)
}

func TestStreamConsecutiveEmptyCancel(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)
	// Every scanned index is funded so the scan would never finish on its own.
	for i := uint32(0); i < 50; i++ {
		fundIndex(chain, deriv, i, 100)
	}

	events := make(chan application.ScanEvent, 128)
	cancel := make(chan struct{})
	close(cancel)
	go scanner.StreamConsecutiveEmpty(context.Background(), 0, 3, events, cancel)

	for event := range events {
		if e, ok := event.(application.ScanCompletedEvent); ok {
			assert.True(t, e.Result.Cancelled)
			assert.False(t, e.Result.MetTarget)
			return
		}
	}
}

func TestScanForFunded(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)
	fundIndex(chain, deriv, 0, 100)
	fundIndex(chain, deriv, 1, 200)
	fundIndex(chain, deriv, 4, 300)

	scan := scanner.ScanForFunded(context.Background(), 0, 3)

	require.Len(t, scan.Funded, 3)
	assert.Equal(t, uint32(0), scan.Funded[0].Index)
	assert.Equal(t, uint32(4), scan.Funded[2].Index)
	// Empty at 2 and 3, then the streak of 5, 6, 7 stops the scan.
	require.Len(t, scan.Empty, 5)
}

func TestScanForFundedWindowCap(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	scanner, deriv := newTestScanner(chain, signer)
	// Every index funded: the streak never forms, only the window stops it.
	for i := uint32(0); i < 60; i++ {
		fundIndex(chain, deriv, i, 100)
	}

	scan := scanner.ScanForFunded(context.Background(), 0, 3)

	assert.Len(t, scan.Funded, 50)
	assert.Empty(t, scan.Empty)
}
