package application_test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/disperse-network/disperse-daemon/internal/core/ports"
)

// **** ChainProvider ****

type fakeChain struct {
	mtx sync.Mutex

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	gasPrice *big.Int

	balanceErr error
	nonceErr   error

	// receiptAfter is the number of GetTransactionReceipt calls per hash that
	// return unmined before a receipt appears. Negative means never mined.
	receiptAfter int
	receiptPolls map[common.Hash]int
	blockNumber  uint64
	gasUsed      uint64

	balanceCalls int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balances:     make(map[common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		gasPrice:     big.NewInt(1_000_000_000),
		receiptPolls: make(map[common.Hash]int),
		blockNumber:  100,
		gasUsed:      21000,
	}
}

func (c *fakeChain) setBalance(addr common.Address, wei *big.Int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.balances[addr] = new(big.Int).Set(wei)
}

func (c *fakeChain) setNonce(addr common.Address, nonce uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.nonces[addr] = nonce
}

func (c *fakeChain) GetBalance(
	_ context.Context, address common.Address,
) (*big.Int, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.balanceCalls++
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	if balance, ok := c.balances[address]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (c *fakeChain) GetTransactionCount(
	_ context.Context, address common.Address,
) (uint64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.nonceErr != nil {
		return 0, c.nonceErr
	}
	return c.nonces[address], nil
}

func (c *fakeChain) GetGasPrice(_ context.Context) (*big.Int, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *fakeChain) GetTransactionReceipt(
	_ context.Context, txHash common.Hash,
) (*types.Receipt, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.receiptAfter < 0 {
		return nil, nil
	}
	c.receiptPolls[txHash]++
	if c.receiptPolls[txHash] <= c.receiptAfter {
		return nil, nil
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(c.blockNumber),
		GasUsed:     c.gasUsed,
	}, nil
}

func (c *fakeChain) SendRawTransaction(
	_ context.Context, rawTx []byte,
) (common.Hash, error) {
	return common.BytesToHash(rawTx), nil
}

// **** Signer ****

type fakeSigner struct {
	mtx sync.Mutex

	// failures is consumed one entry per SignAndBroadcast call; a nil entry
	// means the call succeeds.
	failures []error
	requests []ports.SignRequest

	addressErr error

	// onSign, when set, runs outside the signer lock before each call.
	onSign func(req ports.SignRequest)
}

func (s *fakeSigner) GetAddress(
	_ context.Context, derivationPath string,
) (common.Address, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.addressErr != nil {
		return common.Address{}, s.addressErr
	}
	return addressForPath(derivationPath), nil
}

func (s *fakeSigner) SignAndBroadcast(
	_ context.Context, req ports.SignRequest,
) (common.Hash, error) {
	if s.onSign != nil {
		s.onSign(req)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.requests = append(s.requests, req)
	call := len(s.requests) - 1
	if call < len(s.failures) && s.failures[call] != nil {
		return common.Hash{}, s.failures[call]
	}
	return common.BytesToHash([]byte(fmt.Sprintf("tx-%d", req.Nonce))), nil
}

func (s *fakeSigner) signedRequests() []ports.SignRequest {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	reqs := make([]ports.SignRequest, len(s.requests))
	copy(reqs, s.requests)
	return reqs
}

// addressForPath maps a derivation path to a stable fake address.
func addressForPath(path string) common.Address {
	sum := sha256.Sum256([]byte(path))
	return common.BytesToAddress(sum[:20])
}
