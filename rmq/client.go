package rmq

import (
	"fmt"

	"github.com/jianlins/FastContext/logger"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	Host               string `envconfig:"FASTCONTEXT_RMQ_HOST" required:"true"`
	Port               string `envconfig:"FASTCONTEXT_RMQ_PORT" default:"5672"`
	Username           string `envconfig:"FASTCONTEXT_RMQ_USERNAME" required:"true"`
	Password           string `envconfig:"FASTCONTEXT_RMQ_PASSWORD" required:"true"`
	Exchange           string `envconfig:"FASTCONTEXT_RMQ_EXCHANGE" default:"fastcontext-default-exchange"`
	Prefetch           int    `envconfig:"FASTCONTEXT_RMQ_MAX_PARALLEL_REQUESTS" default:"5"`
	TaskQueue          string `envconfig:"FASTCONTEXT_TASK_QUEUE" default:"fastcontext-tasks"`
	SequencerTaskQueue string `envconfig:"FASTCONTEXT_SEQUENCER_QUEUE" required:"true"`
}

// Client consumes context tasks and publishes their completion to the
// sequencer, over separate connections.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	log            zerolog.Logger
}

func NewClient() (*Client, error) {
	log := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := getURL(config)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("rmq: response connection: %w", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("rmq: request connection: %w", err)
	}
	closeAll := func() {
		_ = reqConn.Close()
		_ = respConn.Close()
	}

	q, err := reqChannel.QueueDeclarePassive(config.TaskQueue, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("rmq: queue %s: %w", config.TaskQueue, err)
	}
	if err = reqChannel.QueueBind(config.TaskQueue, config.TaskQueue, config.Exchange, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("rmq: bind %s: %w", config.TaskQueue, err)
	}
	if err = reqChannel.Qos(config.Prefetch, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("rmq: qos: %w", err)
	}
	deliveries, err := reqChannel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("rmq: consume deliveries: %w", err)
	}

	log.Info().Str("queue", q.Name).Int("prefetch", config.Prefetch).Msg("Consuming context tasks")
	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChannel.NotifyClose(make(chan *amqp.Error, 1)),
		RespChanErrors: respChannel.NotifyClose(make(chan *amqp.Error, 1)),
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		log:            log,
	}, nil
}

func (c *Client) SendMessageToSequencer(msg amqp.Publishing) error {
	return c.respChannel.Publish(c.config.Exchange, c.config.SequencerTaskQueue, false, false, msg)
}

func (c *Client) Close() {
	if err := c.reqConn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("Request connection close")
	}
	if err := c.respConn.Close(); err != nil {
		c.log.Debug().Err(err).Msg("Response connection close")
	}
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
