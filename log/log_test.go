package log_test

import (
	"bytes"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/assert"
	"pkg.world.dev/world-engine/messaging/log"
	"pkg.world.dev/world-engine/messaging/types"
)

type fixedEngine struct{}

func (fixedEngine) CurrentBlock() uint64 { return 42 }

func (fixedEngine) Limits() map[string]uint64 {
	return map[string]uint64{"max_removals": 10}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	assert.NilError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &out))
	return out
}

func TestMessageLogsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	cb := types.NewCallback(common.HexToAddress("0xdead"), types.AbiEncoded, types.Selector{1, 2, 3, 4}, 500)
	msg := types.XcmQuery{
		Header: types.Header{
			Origin:          common.HexToAddress("0x01"),
			Callback:        &cb,
			MessageDeposit:  math.NewInt(10),
			CallbackDeposit: math.NewInt(20),
			Expiry:          9,
		},
		QueryID: 3,
	}

	log.Message(&logger, zerolog.InfoLevel, 5, msg)
	out := decodeLine(t, &buf)
	assert.Equal(t, float64(5), out["message_id"])
	assert.Equal(t, "Pending", out["status"])
	assert.Equal(t, "xcm", out["transport"])
	assert.Equal(t, "xcm/3", out["handle"])
	assert.Equal(t, "20", out["callback_deposit"])
	callback, ok := out["callback"].(map[string]any)
	assert.Check(t, ok)
	assert.Equal(t, "abi", callback["encoding"])
}

func TestEventsLogsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	log.Events(&logger, zerolog.InfoLevel, 7, []types.Event{
		{Kind: types.EventQueriesTimedOut, IDs: []types.MessageID{1, 2}},
		{Kind: types.EventCallbackFailed, ID: 3, Error: "reverted"},
	})
	out := decodeLine(t, &buf)
	assert.Equal(t, float64(2), out["total_events"])
	events, ok := out["events"].([]any)
	assert.Check(t, ok)
	assert.Equal(t, 2, len(events))
}

func TestEngineLogsLimits(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	log.Engine(&logger, zerolog.DebugLevel, fixedEngine{})
	out := decodeLine(t, &buf)
	assert.Equal(t, float64(42), out["current_block"])
	limits, ok := out["limits"].(map[string]any)
	assert.Check(t, ok)
	assert.Equal(t, float64(10), limits["max_removals"])
}

func TestSubLoggersCarryContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	log.CreateMessageLogger(log.CreateBlockLogger(&logger, 3), 8).Info().Msg("hi")
	out := decodeLine(t, &buf)
	assert.Equal(t, float64(3), out["block"])
	assert.Equal(t, float64(8), out["message_id"])
}
