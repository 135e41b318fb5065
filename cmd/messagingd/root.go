package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pkg.world.dev/world-engine/messaging"
	"pkg.world.dev/world-engine/messaging/deposit"
	"pkg.world.dev/world-engine/messaging/driver"
	"pkg.world.dev/world-engine/messaging/kv"
	"pkg.world.dev/world-engine/messaging/router/loopback"
	"pkg.world.dev/world-engine/messaging/server"
	"pkg.world.dev/world-engine/messaging/statsd"
)

const (
	flagBackend    = "backend"
	flagDataDir    = "data-dir"
	flagRedisAddr  = "redis-address"
	flagPort       = "port"
	flagBlockTime  = "block-time"
	flagStatsd     = "statsd-address"
	flagDevAccount = "dev-account"
	flagRelayer    = "relayer"
	flagUnsigned   = "unsigned-calls"
	flagPrettyLog  = "pretty-log"
	flagLogLevel   = "log-level"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "messagingd",
		Short:        "Development node for the asynchronous cross-chain messaging engine",
		SilenceUsage: true,
	}
	root.AddCommand(newStartCmd(), newConfigCmd())
	return root
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the engine with loopback transports, a block driver and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, cfg, err := loadNodeConfig()
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &node); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, node, cfg)
		},
	}
	defaults := defaultNodeConfig()
	cmd.Flags().String(flagBackend, defaults.Backend, "state backend: memory, leveldb or redis")
	cmd.Flags().String(flagDataDir, defaults.DataDir, "leveldb directory")
	cmd.Flags().String(flagRedisAddr, "", "redis address, host:port")
	cmd.Flags().String(flagPort, defaults.Port, "HTTP API port")
	cmd.Flags().Duration(flagBlockTime, defaults.BlockTime, "time between blocks")
	cmd.Flags().String(flagStatsd, "", "statsd agent address; metrics are dropped when empty")
	cmd.Flags().String(flagDevAccount, "", "hex address funded at startup")
	cmd.Flags().String(flagRelayer, "", "hex address that must sign deliveries")
	cmd.Flags().Bool(flagUnsigned, false, "accept unsigned send and remove calls; development only")
	cmd.Flags().Bool(flagPrettyLog, false, "human readable logs")
	cmd.Flags().String(flagLogLevel, defaults.LogLevel, "zerolog level")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the configuration the node would start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, cfg, err := loadNodeConfig()
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(map[string]any{"node": node, "engine": cfg}, "", "  ")
			if err != nil {
				return eris.Wrap(err, "")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return eris.Wrap(err, "")
		},
	}
}

// applyFlags overrides node with every flag set on the command line.
func applyFlags(cmd *cobra.Command, node *NodeConfig) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed(flagBackend) {
		node.Backend, err = flags.GetString(flagBackend)
	}
	if err == nil && flags.Changed(flagDataDir) {
		node.DataDir, err = flags.GetString(flagDataDir)
	}
	if err == nil && flags.Changed(flagRedisAddr) {
		node.RedisAddress, err = flags.GetString(flagRedisAddr)
	}
	if err == nil && flags.Changed(flagPort) {
		node.Port, err = flags.GetString(flagPort)
	}
	if err == nil && flags.Changed(flagBlockTime) {
		node.BlockTime, err = flags.GetDuration(flagBlockTime)
	}
	if err == nil && flags.Changed(flagStatsd) {
		node.StatsdAddress, err = flags.GetString(flagStatsd)
	}
	if err == nil && flags.Changed(flagDevAccount) {
		node.DevAccount, err = flags.GetString(flagDevAccount)
	}
	if err == nil && flags.Changed(flagRelayer) {
		node.Relayer, err = flags.GetString(flagRelayer)
	}
	if err == nil && flags.Changed(flagUnsigned) {
		node.UnsignedCalls, err = flags.GetBool(flagUnsigned)
	}
	if err == nil && flags.Changed(flagPrettyLog) {
		node.PrettyLog, err = flags.GetBool(flagPrettyLog)
	}
	if err == nil && flags.Changed(flagLogLevel) {
		node.LogLevel, err = flags.GetString(flagLogLevel)
	}
	return eris.Wrap(err, "")
}

func openStore(node NodeConfig) (*kv.Store, error) {
	var backend kv.Backend
	switch node.Backend {
	case "memory", "":
		backend = kv.NewMemBackend()
	case "leveldb":
		db, err := kv.NewLevelDBBackend("messaging", node.DataDir)
		if err != nil {
			return nil, err
		}
		backend = db
	case "redis":
		if node.RedisAddress == "" {
			return nil, eris.New("redis backend needs a redis address")
		}
		backend = kv.NewRedis(kv.RedisOptions{
			Addr:     node.RedisAddress,
			Password: node.RedisPassword,
			Prefix:   node.RedisPrefix,
		})
	default:
		return nil, eris.Errorf("unknown backend %q", node.Backend)
	}
	return kv.NewStore(backend, kv.DefaultCacheSize)
}

// newEngine builds the node's engine: an in-memory bank, the dev VM and loopback transports over store.
func newEngine(
	ctx context.Context, node NodeConfig, cfg messaging.Config, store *kv.Store, logger zerolog.Logger,
) (*messaging.Engine, error) {
	bank := deposit.NewBank()
	if node.DevAccount != "" {
		if !common.IsHexAddress(node.DevAccount) {
			return nil, eris.Errorf("dev account %q is not a hex address", node.DevAccount)
		}
		bank.Mint(common.HexToAddress(node.DevAccount), math.NewIntFromUint64(node.DevFunds))
	}
	return messaging.New(ctx, cfg, bank, newDevVM(logger),
		messaging.WithStore(store),
		messaging.WithLogger(logger),
		messaging.WithStartBlock(node.StartBlock),
		messaging.WithPostTransport(loopback.NewPost()),
		messaging.WithQueryTransport(loopback.NewQuery()),
	)
}

func serverOptions(node NodeConfig, logger zerolog.Logger) ([]server.Option, error) {
	opts := []server.Option{server.WithPort(node.Port), server.WithLogger(logger)}
	if node.Relayer != "" {
		if !common.IsHexAddress(node.Relayer) {
			return nil, eris.Errorf("relayer %q is not a hex address", node.Relayer)
		}
		opts = append(opts, server.WithRelayer(common.HexToAddress(node.Relayer)))
	}
	if node.UnsignedCalls {
		logger.Warn().Msg("accepting unsigned calls; any caller can act for any origin")
		opts = append(opts, server.AllowUnsignedCalls())
	}
	return opts, nil
}

func run(ctx context.Context, node NodeConfig, cfg messaging.Config) error {
	level, err := zerolog.ParseLevel(node.LogLevel)
	if err != nil {
		return eris.Wrap(err, "")
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Logger
	if node.PrettyLog {
		logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if node.StatsdAddress != "" {
		if err := statsd.Init(node.StatsdAddress, []string{"service:messagingd"}); err != nil {
			return err
		}
	}

	store, err := openStore(node)
	if err != nil {
		return err
	}
	engine, err := newEngine(ctx, node, cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close engine")
		}
	}()

	serverOpts, err := serverOptions(node, logger)
	if err != nil {
		return err
	}
	srv := server.New(engine, serverOpts...)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	blocks := driver.New(engine, driver.WithBlockTime(node.BlockTime), driver.WithLogger(logger))
	driveErr := make(chan error, 1)
	go func() {
		driveErr <- blocks.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		err = <-driveErr
	case err = <-driveErr:
	case err = <-serveErr:
	}
	if shutdownErr := srv.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
