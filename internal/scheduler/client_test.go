package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type fakeSchedulerConfig struct {
	redisURL    string
	tlsInsecure bool
	queue       string
	concurrency int
}

func (c fakeSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c fakeSchedulerConfig) GetRedisTLSInsecure() bool { return c.tlsInsecure }
func (c fakeSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c fakeSchedulerConfig) GetAsynqConcurrency() int  { return c.concurrency }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

func TestClientEnqueuesTasks(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := NewClient(fakeSchedulerConfig{redisURL: "redis://" + srv.Addr(), queue: "vitigo"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.EnqueueSweepFollowUps(ctx); err != nil {
		t.Fatalf("EnqueueSweepFollowUps: %v", err)
	}
	if err := client.EnqueueSweepOverdue(ctx); err != nil {
		t.Fatalf("EnqueueSweepOverdue: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()
	tasks, err := inspector.ListPendingTasks("vitigo")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("pending tasks = %d, want 2", len(tasks))
	}

	types := map[string]bool{}
	for _, task := range tasks {
		types[task.Type] = true
	}
	if !types[TaskSweepFollowUps] || !types[TaskSweepOverdue] {
		t.Errorf("task types = %v", types)
	}
}

func TestDispatchEnqueueCollapsesBurst(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := NewClient(fakeSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := client.EnqueueDispatchNotifications(ctx); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()
	tasks, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1 after dedup", len(tasks))
	}
	if tasks[0].Type != TaskDispatchNotifications {
		t.Errorf("task type = %s", tasks[0].Type)
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("redis://:secret@redis.internal:6380/2", false)
	if err != nil {
		t.Fatalf("redisClientOpt: %v", err)
	}
	if opt.Addr != "redis.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Errorf("opt = %+v", opt)
	}
	if opt.TLSConfig != nil {
		t.Error("plain redis url should carry no TLS config")
	}

	opt, err = redisClientOpt("rediss://redis.internal:6380", true)
	if err != nil {
		t.Fatalf("redisClientOpt tls: %v", err)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Error("rediss url with insecure flag should skip verification")
	}

	if _, err := redisClientOpt("://bad", false); err == nil {
		t.Error("expected error for malformed url")
	}
}
