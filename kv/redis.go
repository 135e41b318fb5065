package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Redis is a Backend over a redis server. Every key is namespaced by prefix so several engines can share a server.
type Redis struct {
	client redis.UniversalClient
	prefix string
	tracer trace.Tracer
}

var _ Backend = &Redis{}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key. Defaults to "messaging:".
	Prefix string
}

func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisFromClient(client, opts.Prefix)
}

func NewRedisFromClient(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "messaging:"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		tracer: otel.Tracer("redis"),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	bz, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, eris.Wrap(err, "")
	}
	return bz, true, nil
}

// Apply writes all ops inside a MULTI/EXEC transaction.
func (r *Redis) Apply(ctx context.Context, ops []Op) error {
	ctx, span := r.tracer.Start(ctx, "redis.batch.commit", trace.WithAttributes(attribute.Int("ops", len(ops))))
	defer span.End()

	pipe := r.client.TxPipeline()
	for _, op := range ops {
		var err error
		if op.IsDelete() {
			err = pipe.Del(ctx, r.prefix+op.Key).Err()
		} else {
			err = pipe.Set(ctx, r.prefix+op.Key, op.Value, 0).Err()
		}
		if err != nil {
			span.SetStatus(codes.Error, eris.ToString(err, true))
			span.RecordError(err)
			return eris.Wrap(err, "")
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
		return eris.Wrap(err, "")
	}
	return nil
}

func (r *Redis) Close() error {
	return eris.Wrap(r.client.Close(), "")
}
