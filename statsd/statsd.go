// Package statsd is a helper package that wraps the statsd methods the engine uses.
// It hides the datadog dependency so if we decide to migrate away from datadog in the future, we only need to
// edit this single file.
package statsd

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// Count increments the counter name by value.
func Count(name string, value int64, tags ...string) {
	if err := Client().Count(name, value, tags, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit %s count: %v", name, err)
	}
}

// Incr increments the counter name by one.
func Incr(name string, tags ...string) {
	if err := Client().Incr(name, tags, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit %s count: %v", name, err)
	}
}

// EmitBlockStat records how long stage of a block took.
func EmitBlockStat(start time.Time, stage string) {
	duration := time.Since(start)
	err := Client().Timing("block", duration, []string{"stage:" + stage}, 1)
	if err != nil {
		log.Logger.Warn().Msgf("failed to emit block stat: %v", err)
	}
}

// Gauge reports the current value of name.
func Gauge(name string, value float64, tags ...string) {
	if err := Client().Gauge(name, value, tags, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit %s gauge: %v", name, err)
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		// The statsd namespace is the prefix of all metrics
		ddstatsd.WithNamespace("messaging"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "")
	}
	// Success! replace the global client
	client = newClient
	return nil
}

// SetClient replaces the global client. Tests use it to capture metrics.
func SetClient(c ddstatsd.ClientInterface) {
	client = c
}
