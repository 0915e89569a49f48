package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/disperse-network/disperse-daemon/pkg/hdwallet"
)

const (
	// RPCEndpointKey is the url of the EVM JSON-RPC node in the form protocol://host:port
	RPCEndpointKey = "RPC_ENDPOINT"
	// ChainIDKey is the chain id the daemon operates on. Used both for signing and for slip-44 coin type selection
	ChainIDKey = "CHAIN_ID"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATA_DIR_PATH"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// GasSpeedKey is the multiplier applied to the gas price suggested by the node
	GasSpeedKey = "GAS_SPEED"
	// DerivationModeKey selects which path element carries the account index. Either "account-index" or "address-index"
	DerivationModeKey = "DERIVATION_MODE"
	// CoinTypeKey overrides the slip-44 coin type derived from the chain id
	CoinTypeKey = "COIN_TYPE"
	// CustomAccountKey is the fixed account path element used in address-index mode
	CustomAccountKey = "CUSTOM_ACCOUNT"
	// CustomAddressIndexKey is the fixed address path element used in account-index mode
	CustomAddressIndexKey = "CUSTOM_ADDRESS_INDEX"
	// InterTxDelayKey is the duration to wait between two batched transactions
	InterTxDelayKey = "INTER_TX_DELAY"
	// MaxRetriesKey is the number of extra signing attempts after a transient failure
	MaxRetriesKey = "MAX_RETRIES"
	// RetryDelayKey is the base duration of the retry backoff, doubled on each attempt
	RetryDelayKey = "RETRY_DELAY"
	// WaitForConfirmationKey toggles waiting for the receipt of a broadcast transaction
	WaitForConfirmationKey = "WAIT_FOR_CONFIRMATION"
	// ConfirmationTimeoutKey is the duration after which an unconfirmed transaction stops being polled
	ConfirmationTimeoutKey = "CONFIRMATION_TIMEOUT"
	// ScanRateLimitKey represents number of balance requests per second that the scanner makes to the node
	ScanRateLimitKey = "SCAN_RATE_LIMIT"
	// SignerTimeoutKey is the per-call deadline applied to the signing transport
	SignerTimeoutKey = "SIGNER_TIMEOUT"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("dispersed", false)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("DISPERSE")
	vip.AutomaticEnv()

	vip.SetDefault(RPCEndpointKey, "http://localhost:8545")
	vip.SetDefault(ChainIDKey, 1)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(GasSpeedKey, 1.0)
	vip.SetDefault(DerivationModeKey, "account-index")
	vip.SetDefault(CustomAccountKey, 0)
	vip.SetDefault(CustomAddressIndexKey, 0)
	vip.SetDefault(InterTxDelayKey, 3*time.Second)
	vip.SetDefault(MaxRetriesKey, 2)
	vip.SetDefault(RetryDelayKey, 2*time.Second)
	vip.SetDefault(WaitForConfirmationKey, true)
	vip.SetDefault(ConfirmationTimeoutKey, 90*time.Second)
	vip.SetDefault(ScanRateLimitKey, 10)
	vip.SetDefault(SignerTimeoutKey, 60*time.Second)

	if err := validate(); err != nil {
		log.WithError(err).Panic("error while validating config")
	}

	if err := initDatadir(); err != nil {
		log.WithError(err).Panic("error while creating datadir")
	}
}

//GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

//GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

//GetUint32 ...
func GetUint32(key string) uint32 {
	return vip.GetUint32(key)
}

//GetUint64 ...
func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

//GetFloat ...
func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

//GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

//GetBool ...
func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetDatadir returns the data directory of the daemon
func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory holding the badger stores
func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetDerivation assembles the derivation settings from the config. The coin
// type falls back to the slip-44 registration of the configured chain id when
// not set explicitly.
func GetDerivation() (hdwallet.Derivation, error) {
	mode, err := hdwallet.ParseDerivationMode(GetString(DerivationModeKey))
	if err != nil {
		return hdwallet.Derivation{}, err
	}

	coinType := hdwallet.Slip44CoinType(GetUint64(ChainIDKey))
	if vip.IsSet(CoinTypeKey) {
		coinType = GetUint32(CoinTypeKey)
	}

	return hdwallet.Derivation{
		Mode:               mode,
		CoinType:           coinType,
		CustomAccount:      GetUint32(CustomAccountKey),
		CustomAddressIndex: GetUint32(CustomAddressIndexKey),
	}, nil
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the give key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	rpcEndpoint := GetString(RPCEndpointKey)
	if _, err := url.Parse(rpcEndpoint); err != nil {
		return fmt.Errorf("RPC endpoint is not a valid url: %s", err)
	}

	if GetUint64(ChainIDKey) == 0 {
		return fmt.Errorf("chain id must be a positive number")
	}

	gasSpeed := GetFloat(GasSpeedKey)
	if gasSpeed <= 0 || gasSpeed > 10 {
		return fmt.Errorf("gas speed multiplier must be in range (0, 10]")
	}

	if _, err := hdwallet.ParseDerivationMode(GetString(DerivationModeKey)); err != nil {
		return err
	}

	if GetInt(MaxRetriesKey) < 0 {
		return fmt.Errorf("max retries must not be a negative number")
	}

	if GetInt(ScanRateLimitKey) <= 0 {
		return fmt.Errorf("scan rate limit must be a positive number")
	}
	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
