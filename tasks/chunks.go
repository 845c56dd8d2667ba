package tasks

import (
	"context"

	"github.com/jianlins/FastContext/redis"
)

const ChunksDB redis.DB = 2

type TaskStatus string

const (
	TaskStatusProcessing       TaskStatus = "processing"
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusFailed           TaskStatus = "failed"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

func (s TaskStatus) Submitted() bool {
	return s == TaskStatusSubmitted || s == TaskStatusStarted || s == TaskStatusProcessing
}

// ChunkTask is the part of a chunk record the context worker reads and
// writes. Other fields of the record are preserved on update.
type ChunkTask struct {
	DocID           string            `json:"document_id"`
	JobID           string            `json:"job_id"`
	DocumentFileKey string            `json:"document_file_key"`
	TaskStatuses    ChunkTaskStatuses `json:"task_statuses"`
}

type ChunkTaskStatuses struct {
	Context ChunkTaskInfo `json:"context"`
}

type ChunkTaskInfo struct {
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	Dependencies   []string   `json:"dependencies"`
	ErrorMessages  []string   `json:"error_messages"`
}

type ChunkTasks struct {
	client *redis.Client
}

func (tasks ChunkTasks) Get(ctx context.Context, redisKey string) (*ChunkTask, error) {
	var task ChunkTask
	if _, err := tasks.client.GetDoc(ctx, redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks ChunkTasks) Update(ctx context.Context, redisKey string, updateFunc func(task *ChunkTask)) error {
	var task ChunkTask
	return tasks.client.UpdateDoc(ctx, redisKey, &task, func() error {
		updateFunc(&task)
		return nil
	})
}
