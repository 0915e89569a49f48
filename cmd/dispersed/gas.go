package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/urfave/cli/v2"

	"github.com/disperse-network/disperse-daemon/config"
	chainprovider "github.com/disperse-network/disperse-daemon/internal/infrastructure/chain"
	"github.com/disperse-network/disperse-daemon/pkg/ethutil"
)

var gasCmd = cli.Command{
	Name:   "gas",
	Usage:  "show the current gas price and the resulting per-transfer cost",
	Action: gasAction,
}

func gasAction(ctx *cli.Context) error {
	chain, err := chainprovider.NewService(
		ctx.Context,
		config.GetString(config.RPCEndpointKey),
		config.GetUint64(config.ChainIDKey),
	)
	if err != nil {
		return err
	}
	defer chain.Close()

	gasPrice, err := chain.GetGasPrice(context.Background())
	if err != nil {
		return err
	}

	txFee := new(big.Int).Mul(gasPrice, big.NewInt(21000))
	minTransfer := new(big.Int).Mul(txFee, big.NewInt(5))

	fmt.Printf("gas price:    %s gwei\n", ethutil.FormatGwei(gasPrice))
	fmt.Printf("transfer fee: %s ETH\n", ethutil.FormatEther(txFee))
	fmt.Printf("min transfer: %s ETH\n", ethutil.FormatEther(minTransfer))
	return nil
}
