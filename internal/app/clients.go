package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/platform/neo4jdb"
	"github.com/yungbote/tunegraph/internal/platform/redisdb"
	"github.com/yungbote/tunegraph/internal/vector"
)

// Clients are the raw connections. Redis and Vector may be nil when the
// shared cache tier or vector search is disabled.
type Clients struct {
	Neo4j  *neo4jdb.Client
	Redis  *goredis.Client
	Vector vector.Provider
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Registry) (Clients, error) {
	log.Info("Wiring clients...")

	n4j, err := neo4jdb.New(ctx, cfg.Graph, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	rdb, err := redisdb.New(ctx, cfg.Redis, log)
	if err != nil {
		_ = n4j.Close(context.WithoutCancel(ctx))
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	vp, err := resolveVectorProvider(ctx, log, cfg.Vector)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = n4j.Close(context.WithoutCancel(ctx))
		return Clients{}, err
	}

	return Clients{Neo4j: n4j, Redis: rdb, Vector: vp}, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
