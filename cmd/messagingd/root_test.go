package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging"
	"pkg.world.dev/world-engine/messaging/server"
	"pkg.world.dev/world-engine/messaging/sign"
	"pkg.world.dev/world-engine/messaging/types"
)

func TestApplyFlagsOverridesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BACKEND", "leveldb")
	node, _, err := loadNodeConfig()
	assert.NilError(t, err)
	assert.Equal(t, "9000", node.Port)

	cmd := newStartCmd()
	assert.NilError(t, cmd.Flags().Parse([]string{"--backend", "redis", "--block-time", "250ms"}))
	assert.NilError(t, applyFlags(cmd, &node))
	assert.Equal(t, "redis", node.Backend)
	assert.Equal(t, 250*time.Millisecond, node.BlockTime)
	assert.Equal(t, "9000", node.Port)
}

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	for _, node := range []NodeConfig{
		{Backend: "memory"},
		{Backend: "leveldb", DataDir: t.TempDir()},
		{Backend: "redis", RedisAddress: mr.Addr()},
	} {
		store, err := openStore(node)
		assert.NilError(t, err)
		batch := store.NewBatch()
		batch.Set("k", []byte("v"))
		assert.NilError(t, batch.Commit(ctx))
		v, ok, err := store.Get(ctx, "k")
		assert.NilError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", string(v))
		assert.NilError(t, store.Close())
	}

	_, err := openStore(NodeConfig{Backend: "redis"})
	assert.Check(t, err != nil)
	_, err = openStore(NodeConfig{Backend: "cassandra"})
	assert.Check(t, err != nil)
}

func TestConfigCommandPrintsConfig(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config"})
	assert.NilError(t, root.Execute())
	assert.Contains(t, out.String(), "MaxTimeoutsPerBlock")
}

func TestDevVMRefundsHalf(t *testing.T) {
	vm := newDevVM(zerolog.Nop())
	info, err := vm.Call(context.Background(), [20]byte{}, [20]byte{}, []byte{1}, types.Weight(100))
	assert.NilError(t, err)
	assert.Equal(t, types.Weight(50), *info.ActualWeight)
}

func TestDevNodeServesUnsignedCalls(t *testing.T) {
	ctx := context.Background()
	dev := common.HexToAddress("0xde7")
	node := defaultNodeConfig()
	node.DevAccount = dev.Hex()
	node.StartBlock = 10

	cmd := newStartCmd()
	assert.NilError(t, cmd.Flags().Parse([]string{"--unsigned-calls"}))
	assert.NilError(t, applyFlags(cmd, &node))
	assert.True(t, node.UnsignedCalls)

	store, err := openStore(node)
	assert.NilError(t, err)
	engine, err := newEngine(ctx, node, messaging.DefaultConfig(), store, zerolog.Nop())
	assert.NilError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	opts, err := serverOptions(node, zerolog.Nop())
	assert.NilError(t, err)
	srv := server.New(engine, opts...)

	body, err := json.Marshal(server.PostBody{Destination: 2000, Data: []byte("ping"), Timeout: 12})
	assert.NilError(t, err)
	call, err := json.Marshal(sign.Call{Origin: dev, Body: body})
	assert.NilError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/messages/post", bytes.NewReader(call))
	req.Header.Set("Content-Type", "application/json")
	res, err := srv.App().Test(req)
	assert.NilError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	assert.NilError(t, engine.AdvanceBlock(ctx, 12))
	status, err := engine.PollStatus(ctx, 0)
	assert.NilError(t, err)
	assert.Equal(t, types.StatusTimeout, status)
}

func TestServerOptionsRejectBadRelayer(t *testing.T) {
	_, err := serverOptions(NodeConfig{Relayer: "not an address"}, zerolog.Nop())
	assert.Check(t, err != nil)
}
