package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/rmq"
	"github.com/jianlins/FastContext/s3client"
	"github.com/jianlins/FastContext/tasks"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// TaskName identifies this worker in task records and sequencer messages.
const TaskName = "context"

type Config struct {
	TaskMaxRetries int `envconfig:"FASTCONTEXT_RETRY_TASK_COUNT_MAX" default:"3"`
}

// Worker runs the context pipeline for chunk tasks received over RMQ.
type Worker struct {
	config   Config
	redis    redisTransactions
	store    documentStore
	rmq      rmqTransactions
	log      *zerolog.Logger
	ppln     pipeline.Pipeline
	metrics  *metrics.Metrics
	inFlight sync.WaitGroup
}

func New(ppln pipeline.Pipeline, m *metrics.Metrics) (*Worker, error) {
	log := logger.NewLogger("Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Error().Err(err).Msg("Could not read config")
		return nil, err
	}

	worker := Worker{
		config:  config,
		log:     &log,
		ppln:    ppln,
		metrics: m,
	}
	if err := worker.refreshRMQClient(); err != nil {
		return nil, err
	}
	if err := worker.refreshS3Client(); err != nil {
		worker.rmq.close()
		return nil, err
	}
	if err := worker.refreshRedisClients(); err != nil {
		worker.rmq.close()
		worker.store.close()
		return nil, err
	}
	return &worker, nil
}

// StartWorker consumes deliveries until ctx is done or the RMQ connection
// cannot be restored. Messages in flight are finished before it returns.
func (worker *Worker) StartWorker(ctx context.Context) error {
	defer worker.Close()
	for {
		select {
		case <-ctx.Done():
			worker.log.Info().Msg("Stopping worker")
			return nil
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if ok {
				worker.inFlight.Add(1)
				go func(delivery amqp.Delivery) {
					defer worker.inFlight.Done()
					worker.processMessage(ctx, &delivery)
				}(delivery)
				continue
			}
			worker.log.Error().Msg("Deliveries channel closed, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf("rmq deliveries channel has been closed and refresh returned error: %w", err)
			}
		case rmqErr := <-worker.rmq.getRespChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.log.Err(rmqErr).Msg("Response connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf("response connection received error and refresh failed with: %w", err)
			}
		case rmqErr := <-worker.rmq.getReqChanErrorsCh():
			if rmqErr == nil {
				continue
			}
			worker.log.Err(rmqErr).Msg("Request connection received error, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf("request connection received error and refresh failed with: %w", err)
			}
		}
	}
}

func (worker *Worker) Close() {
	worker.inFlight.Wait()
	worker.redis.close()
	worker.store.close()
	worker.rmq.close()
}

func (worker *Worker) refreshRedisClients() error {
	worker.log.Info().Msg("Refreshing Redis client")
	if oldClient := worker.redis; oldClient != nil {
		defer oldClient.close()
	}
	tasksClient, err := tasks.NewClient()
	if err != nil {
		worker.log.Err(err).Msg("Failed to refresh Redis client")
		return err
	}
	worker.redis = &redisClientWrapper{&tasksClient}
	worker.log.Info().Msg("Refreshed Redis client")
	return nil
}

func (worker *Worker) refreshRMQClient() error {
	worker.log.Info().Msg("Refreshing RMQ client")
	if oldClient := worker.rmq; oldClient != nil {
		defer oldClient.close()
	}
	rmqClient, err := rmq.NewClient()
	if err != nil {
		worker.log.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	worker.rmq = &rmqClientWrapper{rmqClient}
	worker.log.Info().Msg("Refreshed RMQ client")
	return nil
}

func (worker *Worker) refreshS3Client() error {
	worker.log.Info().Msg("Refreshing S3 client")
	if oldClient := worker.store; oldClient != nil {
		defer oldClient.close()
	}
	s3Client, err := s3client.New()
	if err != nil {
		worker.log.Err(err).Msg("Failed to refresh S3 client")
		return err
	}
	worker.store = &s3DocumentStore{client: s3Client}
	worker.log.Info().Msg("Refreshed S3 client")
	return nil
}
