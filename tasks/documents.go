package tasks

import (
	"context"
	"errors"

	"github.com/jianlins/FastContext/redis"
	"golang.org/x/sync/errgroup"
)

const DocumentsDB redis.DB = 0

type DocumentTask struct {
	FailedTasks  []string            `json:"failed_tasks"`
	FailedChunks map[string][]string `json:"failed_chunks"`
}

type DocumentTaskCached struct {
	FailedTasks []string `json:"failed_tasks"`
	JobID       string   `json:"job_id"`
	WorkType    string   `json:"work_type"`
}

type DocumentTasks struct {
	client *redis.Client
}

func (tasks DocumentTasks) Get(ctx context.Context, redisKey string) (*DocumentTask, error) {
	var task DocumentTask
	if _, err := tasks.client.GetDoc(ctx, redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks DocumentTasks) GetCached(ctx context.Context, redisKey string) (*DocumentTaskCached, error) {
	var task DocumentTaskCached
	if _, err := tasks.client.GetDoc(ctx, cachedPropertiesKey(redisKey), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update changes the document task and mirrors the failed tasks into its
// cached properties.
func (tasks DocumentTasks) Update(ctx context.Context, redisKey string, updateFunc func(task *DocumentTask)) (err error) {
	releaseLock, err := tasks.client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		releaseErr := releaseLock()
		if err == nil {
			err = releaseErr
		}
	}()

	var task DocumentTask
	doc, err := tasks.client.GetDoc(ctx, redisKey, &task)
	if err != nil {
		return err
	}
	if task.FailedChunks == nil {
		task.FailedChunks = map[string][]string{}
	}
	updateFunc(&task)
	if err = doc.Overlay(&task); err != nil {
		return err
	}

	cachedKey := cachedPropertiesKey(redisKey)
	var cached DocumentTaskCached
	cachedDoc, err := tasks.client.GetDoc(ctx, cachedKey, &cached)
	if err != nil {
		if !errors.Is(err, redis.ErrNotFound) {
			return err
		}
		cachedDoc = redis.Document{}
	}
	cached.FailedTasks = task.FailedTasks
	if err = cachedDoc.Overlay(&cached); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return tasks.client.SaveDoc(groupCtx, redisKey, doc, 0)
	})
	group.Go(func() error {
		return tasks.client.SaveDoc(groupCtx, cachedKey, cachedDoc, 0)
	})
	return group.Wait()
}
