package application_test

import (
	"context"
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disperse-network/disperse-daemon/internal/core/application"
	"github.com/disperse-network/disperse-daemon/internal/core/domain"
)

var testRecipients = []string{
	"0x1111111111111111111111111111111111111111",
	"0x2222222222222222222222222222222222222222",
	"0x3333333333333333333333333333333333333333",
}

// With the fake chain's 1 gwei gas price a transfer costs 21000 gwei and the
// minimum transfer is five times that.
var (
	testTxFee       = big.NewInt(21_000_000_000_000)
	testMinTransfer = big.NewInt(105_000_000_000_000)
	oneEther        = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func newTestPlanner(chain *fakeChain, signer *fakeSigner, seed int64) *application.SplitPlanner {
	scanner, _ := newTestScanner(chain, signer)
	return application.NewSplitPlanner(application.PlannerOpts{
		Chain:   chain,
		Scanner: scanner,
		ChainID: 1,
		Rand:    rand.New(rand.NewSource(seed)),
	})
}

func TestPrepareEqualSplit(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex: 0,
		OutputCount: 3,
		Mode:        application.SplitEqual,
		Recipients:  testRecipients,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, plan.TxFee.Cmp(testTxFee))
	assert.Equal(t, 0, plan.MinTransfer.Cmp(testMinTransfer))
	require.Len(t, plan.Entries, 3)

	// distributable = 1 ETH - 3 fees; the integer-division remainder stays on
	// the source.
	distributable := new(big.Int).Sub(oneEther, new(big.Int).Mul(testTxFee, big.NewInt(3)))
	expectedShare := new(big.Int).Div(distributable, big.NewInt(3))

	total := new(big.Int)
	for i, entry := range plan.Entries {
		tx := entry.Transaction
		assert.Equal(t, 0, tx.Value.Cmp(expectedShare))
		assert.Equal(t, uint64(21000), tx.GasLimit)
		assert.Equal(t, testRecipients[i], strings.ToLower(tx.To.Hex()))
		assert.Contains(t, entry.Description, "SplitFundsEqual")
		total.Add(total, tx.Value)
		total.Add(total, testTxFee)
	}
	// Never overspend.
	assert.True(t, total.Cmp(oneEther) <= 0)
}

func TestPrepareEqualSplitScaledGasPrice(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:        0,
		OutputCount:        3,
		Mode:               application.SplitEqual,
		GasSpeedMultiplier: 1.5,
		Recipients:         testRecipients,
	})
	require.NoError(t, err)

	scaledFee := big.NewInt(31_500_000_000_000)
	assert.Equal(t, 0, plan.TxFee.Cmp(scaledFee))
	assert.Equal(t, 0, plan.GasPrice.Cmp(big.NewInt(1_500_000_000)))
	// The dust floor tracks the unscaled oracle price.
	assert.Equal(t, 0, plan.MinTransfer.Cmp(testMinTransfer))
}

func TestPrepareRandomSplit(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 42)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	remaining := big.NewInt(100_000_000_000_000_000) // 0.1 ETH

	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:      0,
		OutputCount:      3,
		Mode:             application.SplitRandom,
		RemainingBalance: remaining,
		Recipients:       testRecipients,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 3)

	// The last amount is deterministic: amounts plus fees plus the reserved
	// balance reconstruct the source balance exactly.
	spent := new(big.Int).Set(remaining)
	for _, entry := range plan.Entries {
		assert.True(t, entry.Transaction.Value.Cmp(testMinTransfer) >= 0)
		spent.Add(spent, entry.Transaction.Value)
		spent.Add(spent, testTxFee)
	}
	assert.Equal(t, 0, spent.Cmp(oneEther))
}

func TestPrepareRandomSplitDeterministicSeed(t *testing.T) {
	amounts := func(seed int64) []*big.Int {
		chain := newFakeChain()
		signer := &fakeSigner{}
		planner := newTestPlanner(chain, signer, seed)
		_, deriv := newTestScanner(chain, signer)
		chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

		plan, err := planner.Prepare(context.Background(), application.SplitRequest{
			SourceIndex: 0,
			OutputCount: 3,
			Mode:        application.SplitRandom,
			Recipients:  testRecipients,
		})
		require.NoError(t, err)

		values := make([]*big.Int, 0, len(plan.Entries))
		for _, entry := range plan.Entries {
			values = append(values, entry.Transaction.Value)
		}
		return values
	}

	first, second := amounts(7), amounts(7)
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, 0, first[i].Cmp(second[i]))
	}
}

func TestPrepareSourceEmpty(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex: 0,
		OutputCount: 2,
		Recipients:  testRecipients[:2],
	})
	require.ErrorIs(t, err, application.ErrSourceEmpty)
}

func TestPrepareRemainingExceedsBalance(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	_, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:      0,
		OutputCount:      2,
		RemainingBalance: oneEther,
		Recipients:       testRecipients[:2],
	})
	require.ErrorIs(t, err, application.ErrRemainingExceedsBalance)
}

func TestPrepareBalanceTooLow(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	// Covers the fees but not three minimum transfers.
	chain.setBalance(addressForPath(deriv.PathFor(0)), big.NewInt(200_000_000_000_000))

	_, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex: 0,
		OutputCount: 3,
		Recipients:  testRecipients,
	})
	require.ErrorIs(t, err, application.ErrBalanceTooLow)
}

func TestPrepareInvalidRecipient(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	_, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex: 0,
		OutputCount: 2,
		Recipients:  []string{testRecipients[0], "not-an-address"},
	})
	require.ErrorIs(t, err, application.ErrInvalidRecipients)
}

func TestPrepareAutoDiscovery(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:    0,
		OutputCount:    2,
		Mode:           application.SplitEqual,
		ScanStartIndex: 0,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)

	// Index 0 is the funded source and must be skipped; the first two empty
	// derived addresses are 1 and 2.
	assert.Contains(t, plan.Entries[0].DestinationLabel, deriv.PathFor(1))
	assert.Contains(t, plan.Entries[1].DestinationLabel, deriv.PathFor(2))
}

func TestPrepareReverifiesPreFound(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	preFound := []domain.ScanRecord{
		{Index: 5, Address: addressForPath(deriv.PathFor(5)), DerivationPath: deriv.PathFor(5)},
		{Index: 6, Address: addressForPath(deriv.PathFor(6)), DerivationPath: deriv.PathFor(6)},
	}
	// Index 5 received funds since it was discovered and must be rejected.
	chain.setBalance(preFound[0].Address, big.NewInt(1))

	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:    0,
		OutputCount:    2,
		Mode:           application.SplitEqual,
		PreFoundEmpty:  preFound,
		ScanStartIndex: 10,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)

	assert.Contains(t, plan.Entries[0].DestinationLabel, deriv.PathFor(6))
	assert.Contains(t, plan.Entries[1].DestinationLabel, deriv.PathFor(10))
}

func TestPrepareNotEnoughReceivers(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)
	// Every index in the discovery window holds funds.
	for i := uint32(1); i <= 210; i++ {
		chain.setBalance(addressForPath(deriv.PathFor(i)), big.NewInt(1))
	}

	_, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:    0,
		OutputCount:    2,
		ScanStartIndex: 1,
	})
	require.ErrorIs(t, err, application.ErrNotEnoughReceivers)
}

func TestPrepareEmitsProgressEvents(t *testing.T) {
	chain := newFakeChain()
	signer := &fakeSigner{}
	planner := newTestPlanner(chain, signer, 1)

	_, deriv := newTestScanner(chain, signer)
	chain.setBalance(addressForPath(deriv.PathFor(0)), oneEther)

	progress := make(chan application.PrepareEvent, 1024)
	plan, err := planner.Prepare(context.Background(), application.SplitRequest{
		SourceIndex:    0,
		OutputCount:    2,
		Mode:           application.SplitEqual,
		ScanStartIndex: 0,
		Progress:       progress,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	close(progress)

	var sawScanning, sawBuilding, sawComplete bool
	for event := range progress {
		switch e := event.(type) {
		case application.ScanningIndexEvent:
			sawScanning = true
		case application.BuildingTransactionsEvent:
			sawBuilding = true
		case application.PrepareCompleteEvent:
			assert.Equal(t, 2, e.TotalTransactions)
			sawComplete = true
		}
	}
	assert.True(t, sawScanning)
	assert.True(t, sawBuilding)
	assert.True(t, sawComplete)
}
