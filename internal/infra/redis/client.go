package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/governor/internal/core/domain"
	"github.com/vietddude/governor/internal/infra/telemetry"
)

const (
	samplesStream = "governor:telemetry:samples"
	probesStream  = "governor:telemetry:probes"
)

// Client wraps Redis operations for the notification transport and the
// telemetry feed.
type Client struct {
	rdb *redis.Client

	lastSampleID string
	lastProbeID  string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, lastSampleID: "0", lastProbeID: "0"}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func notificationStream(audience domain.Audience) string {
	return fmt.Sprintf("governor:notifications:%s", audience)
}

// Notify publishes a notification to its audience's stream. Implements
// notify.Notifier.
func (c *Client) Notify(ctx context.Context, n domain.Notification) error {
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: notificationStream(n.Audience),
		Values: map[string]any{
			"audience": string(n.Audience),
			"message":  n.Message,
			"severity": string(n.Severity),
			"channel":  string(n.Channel),
			"sent_at":  n.SentAt.UnixNano(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd notification failed: %w", err)
	}
	return nil
}

// NextSamples drains metric samples pushed by the external collector since
// the last call. Implements telemetry.Source.
func (c *Client) NextSamples(ctx context.Context) ([]telemetry.Sample, error) {
	streams, err := c.read(ctx, samplesStream, c.lastSampleID)
	if err != nil {
		return nil, err
	}

	var out []telemetry.Sample
	for _, msg := range streams {
		c.lastSampleID = msg.ID
		sample := telemetry.Sample{
			DependencyID: stringField(msg.Values, "dependency"),
			ErrorRate:    floatField(msg.Values, "error_rate"),
			LatencyMs:    floatField(msg.Values, "latency_ms"),
			QueueDepth:   int(floatField(msg.Values, "queue_depth")),
			Timestamp:    time.Now(),
		}
		if sample.DependencyID == "" {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// NextProbes drains raw probe results since the last call. Implements
// telemetry.Source.
func (c *Client) NextProbes(ctx context.Context) ([]telemetry.ProbeResult, error) {
	streams, err := c.read(ctx, probesStream, c.lastProbeID)
	if err != nil {
		return nil, err
	}

	var out []telemetry.ProbeResult
	for _, msg := range streams {
		c.lastProbeID = msg.ID
		probe := telemetry.ProbeResult{
			DependencyID: stringField(msg.Values, "dependency"),
			Status:       domain.HealthStatus(stringField(msg.Values, "status")),
			Latency:      time.Duration(floatField(msg.Values, "latency_ms")) * time.Millisecond,
			Error:        stringField(msg.Values, "error"),
		}
		if probe.DependencyID == "" {
			continue
		}
		if probe.Status == "" {
			probe.Status = domain.HealthUnknown
		}
		out = append(out, probe)
	}
	return out, nil
}

func (c *Client) read(ctx context.Context, stream, lastID string) ([]redis.XMessage, error) {
	res, err := c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   100,
		Block:   -1, // non-blocking, the control loop polls
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xread %s failed: %w", stream, err)
	}

	var out []redis.XMessage
	for _, s := range res {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func stringField(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatField(values map[string]any, key string) float64 {
	s := stringField(values, key)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
