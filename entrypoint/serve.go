package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jianlins/FastContext/api"
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/redis"
	"github.com/jianlins/FastContext/rules"
	"github.com/jianlins/FastContext/worker"
	"github.com/spf13/cobra"
)

var supervised bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, the RMQ worker and the rule watcher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&supervised, "supervised", false, "run as a child process and report its panics as log records")
}

func runServe(cmd *cobra.Command, args []string) error {
	if supervised {
		os.Exit(logger.Supervise(os.Stdout, os.Args[0], "serve"))
	}
	config, err := readConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	classifiers, err := startClassifiers(ctx, config, m)
	if err != nil {
		return err
	}

	var cache *redis.ResultCache
	if config.CacheActive {
		client, err := redis.NewClient(redis.ResultsDB)
		if err != nil {
			return fmt.Errorf("result cache: %w", err)
		}
		defer client.Close()
		cache = redis.NewResultCache(client, config.CacheTTL, m)
	}

	ppln, err := pipeline.Context(pipeline.ContextParams{
		Classifiers: classifiers,
		Cache:       cache,
		Metrics:     m,
		Parallelism: config.Parallelism,
	})
	if err != nil {
		return err
	}
	mainLogger.Info().Msg("Pipelines loaded")

	if config.WatchRules {
		watcher, err := rules.NewWatcher(rules.DefaultDebounce, pipeline.Registries(classifiers)...)
		if err != nil {
			mainLogger.Err(err).Msg("Could not watch rule files, hot reload is off")
		} else {
			mainLogger.Info().Int("files", watcher.Files()).Msg("Watching rule files")
			go func() { _ = watcher.Run(ctx) }()
		}
	}

	if config.RestAPIActive {
		server := startAPI(config, &api.Request{Pipeline: ppln, Classifiers: classifiers, Metrics: m})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if !config.WorkerActive {
		<-ctx.Done()
		mainLogger.Info().Msg("Shutting down")
		return nil
	}
	runWorker(ctx, ppln, m)
	return nil
}

// startClassifiers retries loading the rules, a rule file on S3 may not be
// reachable right after start.
func startClassifiers(ctx context.Context, config Config, m *metrics.Metrics) ([]pipeline.Classifier, error) {
	var err error
	for retry := 0; retry < pipelineStartMaxRetries; retry++ {
		var classifiers []pipeline.Classifier
		classifiers, err = loadClassifiers(config, m)
		if err == nil {
			return classifiers, nil
		}
		mainLogger.Err(err).Int("retry", retry).Msg("Failed to load rules. Retrying in 5 sec")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pipelineStartRetryDelay):
		}
	}
	return nil, fmt.Errorf("could not load rules after %d retries: %w", pipelineStartMaxRetries, err)
}

func startAPI(config Config, request *api.Request) *http.Server {
	mux := http.NewServeMux()
	request.Routes(mux)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.RestAPIPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.Info().Msgf("REST API on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Fatal().Err(err).Msg("REST API stopped with error")
		}
	}()
	return server
}

func runWorker(ctx context.Context, ppln pipeline.Pipeline, m *metrics.Metrics) {
	mainLogger.Info().Msg("Start FastContext worker")
	for ctx.Err() == nil {
		rmqWorker, err := worker.New(ppln, m)
		if err == nil {
			err = rmqWorker.StartWorker(ctx)
		}
		if err == nil {
			continue
		}
		mainLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
		select {
		case <-ctx.Done():
		case <-time.After(pipelineStartRetryDelay):
		}
	}
	mainLogger.Info().Msg("Worker stopped")
}
