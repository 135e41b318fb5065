package messaging

import (
	jlconfig "github.com/JeremyLoy/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
)

const (
	DefaultMaxContextLen             = 64
	DefaultMaxDataLen                = 1024
	DefaultMaxKeyLen                 = 32
	DefaultMaxKeys                   = 10
	DefaultMaxRemovals               = 1024
	DefaultMaxResponseLen            = 1024
	DefaultMaxTimeoutsPerBlock       = 100
	DefaultOnChainByteFee            = 10
	DefaultOffChainByteFee           = 5
	DefaultFeePerWeight              = 1
	DefaultResponseWeight            = 1_000
	DefaultCallbackExecutionWeight   = 500
	DefaultMaxCallbackWeightPerBlock = 10_000_000
	DefaultReceiptHistorySize        = 10

	// MaxTimeoutsPerBlockLimit bounds MaxTimeoutsPerBlock. A bucket is read and rewritten whole on every change.
	MaxTimeoutsPerBlockLimit = 1 << 16
)

// Config holds the engine's capacity bounds and pricing inputs. Fields load from environment variables named after
// the field in upper snake case, e.g. MAX_TIMEOUTS_PER_BLOCK.
type Config struct {
	// MaxContextLen bounds the context bytes of a GET request.
	MaxContextLen uint64
	// MaxDataLen bounds the body of a POST request.
	MaxDataLen uint64
	// MaxKeyLen bounds each storage key of a GET request.
	MaxKeyLen uint64
	// MaxKeys bounds the number of storage keys of a GET request.
	MaxKeys uint64
	// MaxRemovals bounds the number of ids a single RemoveMany accepts.
	MaxRemovals uint64
	// MaxResponseLen bounds the payload a transport may deliver.
	MaxResponseLen uint64
	// MaxTimeoutsPerBlock is the capacity of each timeout bucket.
	MaxTimeoutsPerBlock uint64

	OnChainByteFee  uint64
	OffChainByteFee uint64
	FeePerWeight    uint64

	// ResponseWeight is the weight of processing a response, prepaid on every send.
	ResponseWeight uint64
	// CallbackExecutionWeight is the fixed overhead of running a callback, prepaid on sends that register one.
	CallbackExecutionWeight uint64
	// MaxCallbackWeightPerBlock caps the callback gas that may be spent within one block.
	MaxCallbackWeightPerBlock uint64

	ReceiptHistorySize int
	// FeeSink is the hex address that receives prepayments and callback fees.
	FeeSink string
}

// DefaultConfig returns the configuration a development node runs with.
func DefaultConfig() Config {
	return Config{
		MaxContextLen:             DefaultMaxContextLen,
		MaxDataLen:                DefaultMaxDataLen,
		MaxKeyLen:                 DefaultMaxKeyLen,
		MaxKeys:                   DefaultMaxKeys,
		MaxRemovals:               DefaultMaxRemovals,
		MaxResponseLen:            DefaultMaxResponseLen,
		MaxTimeoutsPerBlock:       DefaultMaxTimeoutsPerBlock,
		OnChainByteFee:            DefaultOnChainByteFee,
		OffChainByteFee:           DefaultOffChainByteFee,
		FeePerWeight:              DefaultFeePerWeight,
		ResponseWeight:            DefaultResponseWeight,
		CallbackExecutionWeight:   DefaultCallbackExecutionWeight,
		MaxCallbackWeightPerBlock: DefaultMaxCallbackWeightPerBlock,
		ReceiptHistorySize:        DefaultReceiptHistorySize,
		FeeSink:                   "0x000000000000000000000000000000000000fee5",
	}
}

// LoadConfig starts from DefaultConfig and overrides every field that has a matching environment variable.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load config from environment")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.MaxTimeoutsPerBlock == 0 {
		return eris.Wrap(ErrInvalidConfig, "MaxTimeoutsPerBlock must be positive")
	}
	if c.MaxTimeoutsPerBlock > MaxTimeoutsPerBlockLimit {
		return eris.Wrapf(ErrInvalidConfig, "MaxTimeoutsPerBlock must not exceed %d", MaxTimeoutsPerBlockLimit)
	}
	if c.MaxRemovals == 0 {
		return eris.Wrap(ErrInvalidConfig, "MaxRemovals must be positive")
	}
	if c.ReceiptHistorySize < 0 {
		return eris.Wrap(ErrInvalidConfig, "ReceiptHistorySize must not be negative")
	}
	if !common.IsHexAddress(c.FeeSink) {
		return eris.Wrapf(ErrInvalidConfig, "FeeSink %q is not a hex address", c.FeeSink)
	}
	return nil
}

func (c Config) feeSink() common.Address {
	return common.HexToAddress(c.FeeSink)
}

// Limits lists the capacity bounds by name.
func (c Config) Limits() map[string]uint64 {
	return map[string]uint64{
		"max_context_len":               c.MaxContextLen,
		"max_data_len":                  c.MaxDataLen,
		"max_key_len":                   c.MaxKeyLen,
		"max_keys":                      c.MaxKeys,
		"max_removals":                  c.MaxRemovals,
		"max_response_len":              c.MaxResponseLen,
		"max_timeouts_per_block":        c.MaxTimeoutsPerBlock,
		"max_callback_weight_per_block": c.MaxCallbackWeightPerBlock,
	}
}
