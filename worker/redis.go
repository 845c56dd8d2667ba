package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jianlins/FastContext/tasks"
)

type redisTransactions interface {
	getChunkTask(ctx context.Context, redisKey string) (*tasks.ChunkTask, error)
	getJobTask(ctx context.Context, task *Task) (*tasks.JobTask, error)
	getDocTask(ctx context.Context, task *Task) (*tasks.DocumentTaskCached, error)
	onTaskStarted(ctx context.Context, task *Task) error
	onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error
	onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error
	onTaskFailedWithError(ctx context.Context, task *Task, err error) error
	onTaskComplete(ctx context.Context, task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) updateChunk(ctx context.Context, task *Task, update func(info *tasks.ChunkTaskInfo)) error {
	return wrapper.tasksClient.Chunks.Update(ctx, task.redisKey, func(chunkTask *tasks.ChunkTask) {
		update(&chunkTask.TaskStatuses.Context)
	})
}

func (wrapper *redisClientWrapper) onTaskStarted(ctx context.Context, task *Task) error {
	return wrapper.updateChunk(ctx, task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusStarted
		info.Attempts++
		info.StartedAt = timestamp()
		info.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error {
	return wrapper.updateChunk(ctx, task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusCanceled
		info.StartedAt = timestamp()
		info.CompletedAt = timestamp()
		info.Attempts++
		info.ErrorMessages = append(info.ErrorMessages, errorMessages...)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error {
	err := wrapper.tasksClient.Documents.Update(ctx, task.chunkTask.DocID, func(docTask *tasks.DocumentTask) {
		docTask.FailedTasks = append(docTask.FailedTasks, TaskName)
		docTask.FailedChunks[task.redisKey] = append(docTask.FailedChunks[task.redisKey], TaskName)
	})
	if err != nil {
		return err
	}
	return wrapper.updateChunk(ctx, task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusCompletedFailure
		info.StartedAt = timestamp()
		info.CompletedAt = timestamp()
		info.Attempts++
		info.ErrorMessages = append(
			info.ErrorMessages,
			fmt.Sprintf("Task has exceeded retries. (Attempts: %d, max retries: %d )", info.Attempts, maxRetries),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(ctx context.Context, task *Task, err error) error {
	return wrapper.updateChunk(ctx, task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusFailed
		info.CompletedAt = timestamp()
		info.ErrorMessages = append(info.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(ctx context.Context, task *Task) error {
	return wrapper.updateChunk(ctx, task, func(info *tasks.ChunkTaskInfo) {
		if !info.Status.Complete() {
			info.Status = tasks.TaskStatusCompletedSuccess
		}
		info.CompletedAt = timestamp()
		info.ResultsFileKey = resultsKey(task)
	})
}

func (wrapper *redisClientWrapper) getChunkTask(ctx context.Context, redisKey string) (*tasks.ChunkTask, error) {
	return wrapper.tasksClient.Chunks.Get(ctx, redisKey)
}

func (wrapper *redisClientWrapper) getJobTask(ctx context.Context, task *Task) (*tasks.JobTask, error) {
	return wrapper.tasksClient.Jobs.GetCached(ctx, task.chunkTask.JobID)
}

func (wrapper *redisClientWrapper) getDocTask(ctx context.Context, task *Task) (*tasks.DocumentTaskCached, error) {
	return wrapper.tasksClient.Documents.GetCached(ctx, task.chunkTask.DocID)
}

const rfc3339Micro = "2006-01-02T15:04:05.000000-07:00"

func timestamp() *string {
	now := time.Now().UTC().Format(rfc3339Micro)
	return &now
}
