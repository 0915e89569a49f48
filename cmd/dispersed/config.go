package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/disperse-network/disperse-daemon/config"
)

var configCmd = cli.Command{
	Name:   "config",
	Usage:  "print the effective daemon configuration",
	Action: configAction,
}

func configAction(_ *cli.Context) error {
	deriv, err := config.GetDerivation()
	if err != nil {
		return err
	}

	effective := map[string]interface{}{
		config.RPCEndpointKey:         config.GetString(config.RPCEndpointKey),
		config.ChainIDKey:             config.GetUint64(config.ChainIDKey),
		config.DatadirKey:             config.GetDatadir(),
		config.GasSpeedKey:            config.GetFloat(config.GasSpeedKey),
		config.DerivationModeKey:      config.GetString(config.DerivationModeKey),
		"EXAMPLE_DERIVATION_PATH":     deriv.PathFor(0),
		config.InterTxDelayKey:        config.GetDuration(config.InterTxDelayKey).String(),
		config.MaxRetriesKey:          config.GetInt(config.MaxRetriesKey),
		config.RetryDelayKey:          config.GetDuration(config.RetryDelayKey).String(),
		config.WaitForConfirmationKey: config.GetBool(config.WaitForConfirmationKey),
		config.ConfirmationTimeoutKey: config.GetDuration(config.ConfirmationTimeoutKey).String(),
		config.ScanRateLimitKey:       config.GetInt(config.ScanRateLimitKey),
	}

	out, err := json.MarshalIndent(effective, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
