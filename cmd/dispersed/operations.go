package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/disperse-network/disperse-daemon/config"
	dbbadger "github.com/disperse-network/disperse-daemon/internal/infrastructure/storage/db/badger"
)

var operationsCmd = cli.Command{
	Name:   "operations",
	Usage:  "list the recorded fund distribution operations",
	Action: operationsAction,
}

func operationsAction(_ *cli.Context) error {
	manager, err := dbbadger.NewDbManager(config.GetDbDir(), nil)
	if err != nil {
		return err
	}
	defer manager.Close()

	repo := dbbadger.NewOperationRepositoryImpl(manager.OperationStore)
	operations, err := repo.ListOperations(context.Background())
	if err != nil {
		return err
	}

	if len(operations) == 0 {
		fmt.Println("no operations recorded")
		return nil
	}
	for _, op := range operations {
		fmt.Printf(
			"%s  chain=%d  %s  %s\n",
			op.Timestamp.Format("2006-01-02 15:04:05"), op.ChainID, op.Name, op.Details,
		)
	}
	return nil
}
