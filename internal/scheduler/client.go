package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"vitigo_crm_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues background tasks on the shared queue.
type Client struct {
	client *asynq.Client
	queue  string
}

// DispatchTrigger is the minimal surface the API process needs to nudge the
// worker after a lifecycle change produced pending outbox rows.
type DispatchTrigger interface {
	EnqueueDispatchNotifications(ctx context.Context) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDispatchNotifications schedules an immediate outbox delivery pass.
// Unique over a short window so event bursts collapse into one task.
func (c *Client) EnqueueDispatchNotifications(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewDispatchNotificationsTask()
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(10*time.Second))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}
	return nil
}

// EnqueueSweepFollowUps schedules a follow-up timer sweep.
func (c *Client) EnqueueSweepFollowUps(ctx context.Context) error {
	return c.enqueue(ctx, NewSweepFollowUpsTask)
}

// EnqueueSweepOverdue schedules an SLA overdue sweep.
func (c *Client) EnqueueSweepOverdue(ctx context.Context) error {
	return c.enqueue(ctx, NewSweepOverdueTask)
}

// EnqueuePollEmail schedules one mailbox poll.
func (c *Client) EnqueuePollEmail(ctx context.Context) error {
	return c.enqueue(ctx, NewPollEmailTask)
}

func (c *Client) enqueue(ctx context.Context, build func() (*asynq.Task, error)) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := build()
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
