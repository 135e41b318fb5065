package main

import (
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/messaging"
	"pkg.world.dev/world-engine/messaging/driver"
	"pkg.world.dev/world-engine/messaging/server"
)

// NodeConfig is everything the node needs besides the engine config. Like the engine config it is read from
// environment variables in upper snake case, and flags override it.
type NodeConfig struct {
	// Backend is one of memory, leveldb or redis.
	Backend       string
	DataDir       string
	RedisAddress  string
	RedisPassword string
	RedisPrefix   string
	StatsdAddress string
	Port          string
	BlockTime     time.Duration
	StartBlock    uint64
	// DevAccount is funded with DevFunds at startup so requests can be sent without a real currency.
	DevAccount string
	DevFunds   uint64
	// Relayer, when set, is the only address allowed to deliver responses and timeouts over HTTP.
	Relayer string
	// UnsignedCalls lets HTTP callers send and remove messages for any origin without a signature.
	UnsignedCalls bool
	PrettyLog     bool
	LogLevel      string
}

func defaultNodeConfig() NodeConfig {
	return NodeConfig{
		Backend:   "memory",
		DataDir:   ".messagingd",
		Port:      server.DefaultPort,
		BlockTime: driver.DefaultBlockTime,
		DevFunds:  1_000_000_000,
		LogLevel:  "info",
	}
}

func loadNodeConfig() (NodeConfig, messaging.Config, error) {
	node := defaultNodeConfig()
	if err := jlconfig.FromEnv().To(&node); err != nil {
		return node, messaging.Config{}, eris.Wrap(err, "failed to load node config from environment")
	}
	cfg, err := messaging.LoadConfig()
	if err != nil {
		return node, cfg, err
	}
	return node, cfg, nil
}
