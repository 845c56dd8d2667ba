package worker

import (
	"encoding/json"
	"time"

	"github.com/jianlins/FastContext/rmq"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type rmqTransactions interface {
	pingSequencer(task *Task, message Message) error
	acknowledgeDelivery(delivery *amqp.Delivery) error
	rejectDelivery(delivery *amqp.Delivery, log *zerolog.Logger)
	getDeliveriesCh() <-chan amqp.Delivery
	getReqChanErrorsCh() <-chan *amqp.Error
	getRespChanErrorsCh() <-chan *amqp.Error
	close()
}

type rmqClientWrapper struct {
	rmqClient *rmq.Client
}

func (wrapper *rmqClientWrapper) close() {
	wrapper.rmqClient.Close()
}

func (wrapper *rmqClientWrapper) getDeliveriesCh() <-chan amqp.Delivery {
	return wrapper.rmqClient.Deliveries
}

func (wrapper *rmqClientWrapper) getReqChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.ReqChanErrors
}

func (wrapper *rmqClientWrapper) getRespChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.RespChanErrors
}

// pingSequencer hands the chunk back to the sequencer, signed by this worker.
func (wrapper *rmqClientWrapper) pingSequencer(task *Task, message Message) error {
	message.Sender = TaskName
	b, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return wrapper.rmqClient.SendMessageToSequencer(
		amqp.Publishing{
			ContentType:   task.delivery.ContentType,
			CorrelationId: task.redisKey,
			AppId:         TaskName,
			Timestamp:     time.Now().UTC(),
			Body:          b,
		},
	)
}

func (wrapper *rmqClientWrapper) acknowledgeDelivery(delivery *amqp.Delivery) error {
	return delivery.Ack(false)
}

// rejectDelivery requeues a delivery once, then drops it.
func (wrapper *rmqClientWrapper) rejectDelivery(delivery *amqp.Delivery, log *zerolog.Logger) {
	requeue := !delivery.Redelivered
	if requeue {
		log.Info().Msg("Requeuing delivery as it has not been redelivered yet")
	} else {
		log.Info().Msg("Rejecting delivery as it already has been redelivered")
	}
	if err := delivery.Reject(requeue); err != nil {
		log.Err(err).Bool("requeue", requeue).Msg("Failed to reject delivery")
	}
}
