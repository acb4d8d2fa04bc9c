package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskSweepFollowUps = "query.sweep.followups"

const TaskSweepOverdue = "query.sweep.overdue"

const TaskDispatchNotifications = "notification.dispatch"

const TaskPollEmail = "channels.email.poll"

// SweepPayload carries the enqueue time so handlers can log scheduling lag.
type SweepPayload struct {
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func NewSweepFollowUpsTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepFollowUps, data), nil
}

func NewSweepOverdueTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepOverdue, data), nil
}

func NewDispatchNotificationsTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchNotifications, data), nil
}

func NewPollEmailTask() (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{EnqueuedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPollEmail, data), nil
}
