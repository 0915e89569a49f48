package chainprovider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker"

	"github.com/disperse-network/disperse-daemon/internal/core/ports"
	"github.com/disperse-network/disperse-daemon/pkg/circuitbreaker"
)

// Service implements ports.ChainProvider on top of an EVM JSON-RPC node.
// Every call goes through a shared circuit breaker so that a failing node
// trips the whole provider instead of timing out request by request.
type Service struct {
	client  *ethclient.Client
	cb      *gobreaker.CircuitBreaker
	chainID uint64
}

var _ ports.ChainProvider = (*Service)(nil)

// NewService dials the node at the given RPC endpoint and verifies that it
// serves the expected chain id.
func NewService(ctx context.Context, rpcURL string, expectedChainID uint64) (*Service, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}
	if expectedChainID > 0 && chainID.Uint64() != expectedChainID {
		client.Close()
		return nil, fmt.Errorf(
			"chain id mismatch: node serves %d, expected %d", chainID.Uint64(), expectedChainID,
		)
	}

	return &Service{
		client:  client,
		cb:      circuitbreaker.NewCircuitBreaker("chain-provider"),
		chainID: chainID.Uint64(),
	}, nil
}

func (s *Service) GetBalance(
	ctx context.Context, address common.Address,
) (*big.Int, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.BalanceAt(ctx, address, nil)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

func (s *Service) GetTransactionCount(
	ctx context.Context, address common.Address,
) (uint64, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.PendingNonceAt(ctx, address)
	})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

func (s *Service) GetGasPrice(ctx context.Context) (*big.Int, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.(*big.Int), nil
}

func (s *Service) GetTransactionReceipt(
	ctx context.Context, txHash common.Hash,
) (*types.Receipt, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		receipt, err := s.client.TransactionReceipt(ctx, txHash)
		// Not yet mined is a normal answer, not a failure.
		if errors.Is(err, ethereum.NotFound) {
			return (*types.Receipt)(nil), nil
		}
		return receipt, err
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.Receipt), nil
}

func (s *Service) SendRawTransaction(
	ctx context.Context, rawTx []byte,
) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, fmt.Errorf("decoding raw transaction: %w", err)
	}

	if _, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.SendTransaction(ctx, tx)
	}); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// ChainID returns the chain id reported by the node at dial time.
func (s *Service) ChainID() uint64 {
	return s.chainID
}

// Close tears down the underlying RPC connection.
func (s *Service) Close() {
	s.client.Close()
}
