package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/withObsrvr/asset-graph-indexer/pkg/store"
	"github.com/withObsrvr/asset-graph-indexer/processor"
)

// RedisClient is the subset of the redis API used to mirror entities.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// PublishChangesToRedis mirrors every committed entity into redis and
// publishes a notification per change set.
//
// Entities are stored as JSON under <prefix><kind>:<id>; the ids of each kind
// are kept in the set <prefix><kind>. Notifications go to <prefix>changes and
// to <prefix>changes:<kind> for every kind touched.
type PublishChangesToRedis struct {
	client     RedisClient
	processors []processor.Processor
	keyPrefix  string
	ttl        time.Duration
	publish    bool
	logger     *zap.Logger
}

type changeNotice struct {
	EventID  string   `json:"event_id"`
	Name     string   `json:"name"`
	Outcome  string   `json:"outcome"`
	Block    uint64   `json:"block_number"`
	LogIndex uint32   `json:"log_index"`
	Kinds    []string `json:"kinds"`
	Count    int      `json:"count"`
}

func NewPublishChangesToRedis(config map[string]interface{}, logger *zap.Logger) (*PublishChangesToRedis, error) {
	var opts *redis.Options
	if url, ok := config["redis_url"].(string); ok && url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis_url: %w", err)
		}
		opts = parsed
	} else {
		address, ok := config["redis_address"].(string)
		if !ok || address == "" {
			return nil, fmt.Errorf("missing redis_address or redis_url in config")
		}
		password, _ := config["redis_password"].(string)
		opts = &redis.Options{Addr: address, Password: password, DB: intField(config, "redis_db", 0)}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewPublishChangesToRedisWithClient(client, config, logger), nil
}

// NewPublishChangesToRedisWithClient uses an existing client.
func NewPublishChangesToRedisWithClient(client RedisClient, config map[string]interface{}, logger *zap.Logger) *PublishChangesToRedis {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix, _ := config["key_prefix"].(string)
	if prefix == "" {
		prefix = "assetgraph:"
	}
	publish := true
	if v, ok := config["publish"].(bool); ok {
		publish = v
	}
	return &PublishChangesToRedis{
		client:    client,
		keyPrefix: prefix,
		ttl:       time.Duration(intField(config, "ttl_hours", 0)) * time.Hour,
		publish:   publish,
		logger:    logger.Named("redis"),
	}
}

func (r *PublishChangesToRedis) Subscribe(processor processor.Processor) {
	r.processors = append(r.processors, processor)
}

func (r *PublishChangesToRedis) Process(ctx context.Context, msg processor.Message) error {
	cs, err := processor.ExtractChangeSet(msg)
	if err != nil {
		return err
	}
	for _, c := range cs.Changes {
		if err := r.apply(ctx, c); err != nil {
			return err
		}
	}
	if !r.publish || len(cs.Changes) == 0 {
		return nil
	}

	kinds := cs.Kinds()
	notice, err := json.Marshal(changeNotice{
		EventID:  cs.EventID,
		Name:     cs.Name,
		Outcome:  cs.Outcome,
		Block:    cs.Position.BlockNumber,
		LogIndex: cs.Position.LogIndex,
		Kinds:    kinds,
		Count:    len(cs.Changes),
	})
	if err != nil {
		return fmt.Errorf("error marshaling change notice: %w", err)
	}
	if err := r.client.Publish(ctx, r.keyPrefix+"changes", notice).Err(); err != nil {
		return fmt.Errorf("error publishing change notice: %w", err)
	}
	for _, kind := range kinds {
		if err := r.client.Publish(ctx, r.keyPrefix+"changes:"+kind, notice).Err(); err != nil {
			return fmt.Errorf("error publishing %s notice: %w", kind, err)
		}
	}
	r.logger.Debug("mirrored change set", zap.String("event_id", cs.EventID), zap.Int("changes", len(cs.Changes)))
	return nil
}

func (r *PublishChangesToRedis) apply(ctx context.Context, c store.Change) error {
	key := r.keyPrefix + c.Kind + ":" + c.ID
	index := r.keyPrefix + c.Kind
	switch c.Op {
	case store.OpPut:
		if err := r.client.Set(ctx, key, []byte(c.Body), r.ttl).Err(); err != nil {
			return fmt.Errorf("error writing %s: %w", key, err)
		}
		if err := r.client.SAdd(ctx, index, c.ID).Err(); err != nil {
			return fmt.Errorf("error indexing %s: %w", key, err)
		}
	case store.OpDelete:
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("error deleting %s: %w", key, err)
		}
		if err := r.client.SRem(ctx, index, c.ID).Err(); err != nil {
			return fmt.Errorf("error unindexing %s: %w", key, err)
		}
	default:
		return fmt.Errorf("unknown change op %q", c.Op)
	}
	return nil
}

func (r *PublishChangesToRedis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
