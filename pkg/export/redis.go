package export

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// RedisSink publishes reports to Redis under
//
//	<prefix>:<kind>:latest   the newest report (JSON)
//	<prefix>:<kind>:history  newest-first list of recent reports
//	<prefix>:<kind>:scores   hash of source id -> composite score
type RedisSink struct {
	client *redis.Client
	cfg    config.RedisConfig
}

// NewRedisSink connects lazily to the server in cfg.
func NewRedisSink(cfg config.RedisConfig) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password(),
		DB:       cfg.DB,
	})
	return &RedisSink{client: client, cfg: cfg}
}

// Check pings the server.
func (s *RedisSink) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("export: redis ping: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) key(kind types.Kind, suffix string) string {
	return s.cfg.KeyPrefix + ":" + string(kind) + ":" + suffix
}

// Publish stores r as the latest report of its kind, prepends it to the
// bounded history and replaces the score hash, in one pipeline.
func (s *RedisSink) Publish(ctx context.Context, r *types.Report) error {
	payload, err := MarshalReport(r)
	if err != nil {
		return fmt.Errorf("export: marshal report: %w", err)
	}

	scores := make(map[string]interface{}, len(r.Sources))
	for _, src := range r.Sources {
		if math.IsNaN(src.Score) || math.IsInf(src.Score, 0) {
			continue
		}
		scores[src.ID] = strconv.FormatFloat(src.Score, 'g', -1, 64)
	}

	latest := s.key(r.Kind, "latest")
	history := s.key(r.Kind, "history")
	scoresKey := s.key(r.Kind, "scores")

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, latest, payload, s.cfg.TTL)
	pipe.LPush(ctx, history, payload)
	pipe.LTrim(ctx, history, 0, int64(s.cfg.History-1))
	pipe.Del(ctx, scoresKey)
	if len(scores) > 0 {
		pipe.HSet(ctx, scoresKey, scores)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("export: redis exec: %w", err)
	}
	return nil
}
