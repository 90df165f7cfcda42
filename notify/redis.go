// Package notify mirrors case snapshots to external channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"petsos/config"
	"petsos/models"
	"petsos/sos"
)

// Publisher is the subset of *redis.Client used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// SnapshotMessage is the payload published for every snapshot.
type SnapshotMessage struct {
	PublishedAt time.Time        `json:"published_at"`
	Cases       []models.SOSCase `json:"cases"`
}

// RedisPublisher forwards every snapshot to a Redis pub/sub channel.
type RedisPublisher struct {
	client  Publisher
	channel string
	timeout time.Duration
	logger  *logrus.Logger
}

func NewRedisPublisher(client Publisher, channel string, logger *logrus.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

// NewRedisClient dials Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Handle publishes one snapshot. It runs on the observer's delivery goroutine,
// so a slow Redis only delays this observer.
func (p *RedisPublisher) Handle(cases []models.SOSCase) {
	payload, err := json.Marshal(SnapshotMessage{PublishedAt: time.Now().UTC(), Cases: cases})
	if err != nil {
		p.logger.WithError(err).Error("failed to encode snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.WithError(err).WithField("channel", p.channel).Warn("failed to publish snapshot")
		return
	}
	p.logger.WithFields(logrus.Fields{
		"channel": p.channel,
		"cases":   len(cases),
	}).Debug("snapshot published")
}

// Attach registers the publisher as an observer of svc.
func (p *RedisPublisher) Attach(ctx context.Context, svc sos.CaseService) (*sos.Subscription, error) {
	return svc.ObserveCases(ctx, p.Handle)
}
