package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/disperse-network/disperse-daemon/config"
	chainprovider "github.com/disperse-network/disperse-daemon/internal/infrastructure/chain"
	"github.com/disperse-network/disperse-daemon/pkg/ethutil"
)

var balanceCmd = cli.Command{
	Name:      "balance",
	Usage:     "show the balance and nonce of an address",
	ArgsUsage: "<address>",
	Action:    balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	addrStr := ctx.Args().First()
	if !common.IsHexAddress(addrStr) {
		return fmt.Errorf("invalid address: %q", addrStr)
	}
	addr := common.HexToAddress(addrStr)

	chain, err := chainprovider.NewService(
		ctx.Context,
		config.GetString(config.RPCEndpointKey),
		config.GetUint64(config.ChainIDKey),
	)
	if err != nil {
		return err
	}
	defer chain.Close()

	balance, err := chain.GetBalance(context.Background(), addr)
	if err != nil {
		return err
	}
	nonce, err := chain.GetTransactionCount(context.Background(), addr)
	if err != nil {
		return err
	}

	fmt.Printf("address: %s\n", addr.Hex())
	fmt.Printf("balance: %s ETH\n", ethutil.FormatEther(balance))
	fmt.Printf("nonce:   %d\n", nonce)
	return nil
}
