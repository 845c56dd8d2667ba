package s3client

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/jianlins/FastContext/logger"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

var clientLogger = logger.NewLogger("S3 client")
var sdkLogger = logger.NewLogger("S3 SDK")

type EnvironmentConfig struct {
	BucketName  string `envconfig:"FASTCONTEXT_S3_BUCKET" required:"true"`
	Region      string `envconfig:"FASTCONTEXT_AWS_REGION" default:"us-east-1"`
	Endpoint    string `envconfig:"FASTCONTEXT_AWS_ENDPOINT_URL"`
	AccessKeyID string `envconfig:"FASTCONTEXT_AWS_ACCESS_ID"`
	AccessKey   string `envconfig:"FASTCONTEXT_AWS_ACCESS_KEY"`
	Debug       bool   `envconfig:"FASTCONTEXT_AWS_DEBUG" default:"false"`
}

// Client reads documents and rule files from a bucket and writes results
// back to it.
type Client struct {
	sess       *session.Session
	bucketName string
}

func New() (*Client, error) {
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	sess, err := session.NewSession(awsConfig(env))
	if err != nil {
		clientLogger.Err(err).Msg("Could not initialize S3 session")
		return nil, fmt.Errorf("s3client: %w", err)
	}
	clientLogger.Info().Str("bucket", env.BucketName).Str("region", env.Region).Msg("S3 session initialized")
	return &Client{sess: sess, bucketName: env.BucketName}, nil
}

// awsConfig uses static credentials when both are set, the default chain
// otherwise. A custom endpoint switches to path style addressing.
func awsConfig(env EnvironmentConfig) *aws.Config {
	cfg := aws.NewConfig().
		WithRegion(env.Region).
		WithMaxRetries(4)
	if env.AccessKeyID != "" && env.AccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(env.AccessKeyID, env.AccessKey, ""))
	}
	if env.Endpoint != "" {
		cfg = cfg.WithEndpoint(env.Endpoint).WithS3ForcePathStyle(true)
	}
	if env.Debug {
		cfg = cfg.WithLogLevel(aws.LogDebug)
	}
	return cfg
}

func (client *Client) Upload(data string, key string) (*s3manager.UploadOutput, error) {
	log := clientLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger()
	uploader := s3manager.NewUploader(client.sessionFor(key))
	log.Debug().Int("bytes", len(data)).Msg("Uploading the file")
	output, err := uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(client.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(data)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to upload file")
		return nil, err
	}
	return output, nil
}

func (client *Client) Download(key string) ([]byte, error) {
	log := clientLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger()
	downloader := s3manager.NewDownloader(client.sessionFor(key))
	buf := aws.NewWriteAtBuffer([]byte{})
	log.Debug().Msg("Downloading file")
	size, err := downloader.Download(buf, &s3.GetObjectInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	log.Debug().Int64("bytes", size).Msg("Downloaded file")
	return buf.Bytes(), nil
}

func (client *Client) Close() {}

func (client *Client) sessionFor(key string) *session.Session {
	sdkLog := sdkLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger()
	return client.sess.Copy(&aws.Config{Logger: sdkLoggerAdapter{sdkLog}})
}

type sdkLoggerAdapter struct {
	log zerolog.Logger
}

func (adapter sdkLoggerAdapter) Log(v ...interface{}) {
	adapter.log.Debug().Msg(fmt.Sprint(v...))
}
