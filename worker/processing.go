package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/tasks"
	"github.com/jianlins/FastContext/utils"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

var ErrNoPipelineResult = errors.New("pipeline channel was closed before returning anything")

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	delivery  *amqp.Delivery
	chunkTask *tasks.ChunkTask
	message   *Message
	redisKey  string
	log       *zerolog.Logger
}

func (worker *Worker) processMessage(ctx context.Context, delivery *amqp.Delivery) {
	rejectLogger := worker.log.With().Str("message_id", delivery.MessageId).Logger()
	task, err := worker.createTask(ctx, delivery)
	if err != nil {
		rejectLogger.Err(err).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.metrics.ObserveTask(metrics.StatusError)
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(ctx, task); err != nil {
		worker.metrics.ObserveTask(metrics.StatusError)
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.pingSequencer(task, *task.message); err != nil {
		task.log.Err(err).Msg("Got error while sending message to sequencer queue")
		worker.metrics.ObserveTask(metrics.StatusError)
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.log.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.log.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(ctx context.Context, delivery *amqp.Delivery) (*Task, error) {
	var message Message
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	chunkTask, err := worker.redis.getChunkTask(ctx, message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk task for message, got error %w", err)
	}
	taskLogger := worker.log.With().Str("tid", message.RedisKey).Logger()
	return &Task{
		delivery:  delivery,
		chunkTask: chunkTask,
		redisKey:  message.RedisKey,
		message:   &message,
		log:       &taskLogger,
	}, nil
}

func (worker *Worker) processTask(ctx context.Context, task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(ctx, task)
	if err != nil {
		task.log.Err(err).Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		worker.metrics.ObserveTask(metrics.StatusSkipped)
		return nil
	}
	if err = worker.redis.onTaskStarted(ctx, task); err != nil {
		task.log.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update task info: %w", err)
	}
	if err = worker.runPipeline(task); err != nil {
		task.log.Err(err).Msg("Got error while running pipeline")
		worker.metrics.ObserveTask(metrics.StatusFailure)
		return worker.redis.onTaskFailedWithError(ctx, task, err)
	}
	task.log.Info().Msg("Marking task as complete")
	if err = worker.redis.onTaskComplete(ctx, task); err != nil {
		task.log.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	worker.metrics.ObserveTask(metrics.StatusSuccess)
	return nil
}

func (worker *Worker) runPipeline(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.log.Info().Msgf("Processing message from RMQ, attempt # %d", task.chunkTask.TaskStatuses.Context.Attempts)
	doc, err := worker.store.loadDocument(task)
	if err != nil {
		task.log.Err(err).Caller().Msg("Could not load document")
		return err
	}
	result, ok := <-worker.ppln(pipeline.Request{Tid: task.redisKey, Document: doc})
	if !ok {
		return ErrNoPipelineResult
	}
	task.log.Info().Msg("Finished pipeline, saving results to s3")
	key, err := worker.store.saveResults(task, result)
	if err != nil {
		task.log.Err(err).Msg("Got error while trying to save results")
		return err
	}
	task.log.Info().Str("results_key", key).Msg("Saved results")
	return nil
}

func (worker *Worker) shouldPerformTask(ctx context.Context, task *Task) (bool, error) {
	taskInfo := task.chunkTask.TaskStatuses.Context
	taskLogger := task.log

	if taskInfo.Status.Complete() {
		taskLogger.Info().Msg("Task is already done. (might indicate issue acking message with RMQ). Sending back to Sequencer.")
		return false, nil
	}
	taskJob, err := worker.redis.getJobTask(ctx, task)
	if err != nil {
		taskLogger.Err(err).Msg("Failed to query job task for chunk task")
		return false, err
	}
	if taskJob.UserCanceled {
		taskLogger.Info().Msg("Job was canceled, no need to perform this task. Sending back to Sequencer.")
		return false, worker.redis.onTaskCancelled(ctx, task)
	}
	if taskJob.StopDocumentsOnFailure {
		docTask, err := worker.redis.getDocTask(ctx, task)
		if err != nil {
			return false, err
		}
		if docTask == nil {
			return false, errors.New("document task not found")
		}
		if len(docTask.FailedTasks) > 0 {
			failedTask := docTask.FailedTasks[0]
			taskLogger.Info().Msgf("Task is not required because the \"%s\" already completed failure "+
				"and document won't be processed successfully. Sending back to Sequencer.", failedTask)
			return false, worker.redis.onTaskCancelled(
				ctx,
				task,
				fmt.Sprintf(
					"Task was marked as \"%s\" because of the current document has failed "+
						"in the \"%s\" worker and won't be processed successfully.",
					tasks.TaskStatusCanceled,
					failedTask,
				),
			)
		}
	}
	if taskInfo.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Context task has exceeded retries. Sending back to Sequencer.")
		return false, worker.redis.onTaskExceededRetries(ctx, task, worker.config.TaskMaxRetries)
	}
	return true, nil
}
