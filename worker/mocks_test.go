package worker

import (
	"context"
	"errors"

	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/tasks"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const validDocument = `{"text": "Patient denies fever .", "concepts": [{"begin": 15, "end": 20}]}`

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type pipelineMock struct {
	ppln     pipeline.Pipeline
	config   pipelineMockConfig
	calls    pipelineCall
	requests []pipeline.Request
}

type pipelineMockConfig struct {
	fail   bool
	result string
}

type pipelineCall struct {
	pipeline bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getChunkTask          withValue
	getJobTask            withValue
	getDocTask            withValue
	onTaskCancelled       failingMethod
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getChunkTask          bool
	getJobTask            bool
	getDocTask            bool
	onTaskCancelled       bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskComplete        bool
}

type rmqMock struct {
	config rmqMockConfig
	calls  rmqMockCalls
}

type rmqMockConfig struct {
	pingSequencer       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	pingSequencer       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
	saved  map[string]string
}

type s3MockConfig struct {
	loadDocument withValue
	saveResults  failingMethod
}

type s3MockCalls struct {
	loadDocument bool
	saveResults  bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {}

func (mock *redisMock) close() {}

func getPipelineMock(config pipelineMockConfig) *pipelineMock {
	mock := pipelineMock{config: config}
	mock.ppln = func(request pipeline.Request) <-chan string {
		mock.calls.pipeline = true
		mock.requests = append(mock.requests, request)
		ch := make(chan string, 1)
		if !mock.config.fail {
			ch <- mock.config.result
		}
		close(ch)
		return ch
	}
	return &mock
}

func (mock *redisMock) getChunkTask(ctx context.Context, redisKey string) (*tasks.ChunkTask, error) {
	mock.calls.getChunkTask = true
	if mock.config.getChunkTask.fail {
		return nil, errors.New("failed to get chunk task")
	}
	if task, ok := mock.config.getChunkTask.returnedValue.(tasks.ChunkTask); ok {
		return &task, nil
	}
	return &tasks.ChunkTask{DocID: "doc", DocumentFileKey: "documents/doc.json"}, nil
}

func (mock *redisMock) getJobTask(ctx context.Context, task *Task) (*tasks.JobTask, error) {
	mock.calls.getJobTask = true
	if mock.config.getJobTask.fail {
		return nil, errors.New("failed to get job task")
	}
	if jobTask, ok := mock.config.getJobTask.returnedValue.(tasks.JobTask); ok {
		return &jobTask, nil
	}
	return &tasks.JobTask{}, nil
}

func (mock *redisMock) getDocTask(ctx context.Context, task *Task) (*tasks.DocumentTaskCached, error) {
	mock.calls.getDocTask = true
	if mock.config.getDocTask.fail {
		return nil, errors.New("failed to get doc task")
	}
	if docTask, ok := mock.config.getDocTask.returnedValue.(tasks.DocumentTaskCached); ok {
		return &docTask, nil
	}
	return &tasks.DocumentTaskCached{}, nil
}

func (mock *redisMock) onTaskStarted(ctx context.Context, task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update chunk task on start")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(ctx context.Context, task *Task, errorMessages ...string) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update chunk task on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(ctx context.Context, task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update chunk task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(ctx context.Context, task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update chunk task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(ctx context.Context, task *Task) error {
	mock.calls.onTaskComplete = true
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update chunk task on complete")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, log *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) pingSequencer(task *Task, message Message) error {
	mock.calls.pingSequencer = true
	if mock.config.pingSequencer.fail {
		return errors.New("failed to ping sequencer")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) loadDocument(task *Task) (pipeline.Document, error) {
	mock.calls.loadDocument = true
	if mock.config.loadDocument.fail {
		return pipeline.Document{}, errors.New("mock: failed to load from s3")
	}
	data := []byte(validDocument)
	if value, ok := mock.config.loadDocument.returnedValue.([]byte); ok {
		data = value
	}
	return pipeline.ParseDocument(data)
}

func (mock *s3Mock) saveResults(task *Task, result string) (string, error) {
	mock.calls.saveResults = true
	if mock.config.saveResults.fail {
		return "", errors.New("failed to upload results")
	}
	if mock.saved == nil {
		mock.saved = map[string]string{}
	}
	key := resultsKey(task)
	mock.saved[key] = result
	return key, nil
}
