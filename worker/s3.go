package worker

import (
	"fmt"
	"path"

	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/s3client"
)

// documentStore reads the document of a chunk and keeps its context results.
type documentStore interface {
	loadDocument(task *Task) (pipeline.Document, error)
	saveResults(task *Task, result string) (string, error)
	close()
}

type s3DocumentStore struct {
	client *s3client.Client
}

func (store *s3DocumentStore) close() {
	store.client.Close()
}

func (store *s3DocumentStore) loadDocument(task *Task) (pipeline.Document, error) {
	data, err := store.client.Download(task.chunkTask.DocumentFileKey)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("failed to fetch document from s3: %w", err)
	}
	doc, err := pipeline.ParseDocument(data)
	if err != nil {
		return doc, fmt.Errorf("invalid document %s: %w", task.chunkTask.DocumentFileKey, err)
	}
	return doc, nil
}

// saveResults uploads the result beside the other outputs of the chunk and
// returns its key.
func (store *s3DocumentStore) saveResults(task *Task, result string) (string, error) {
	key := resultsKey(task)
	if _, err := store.client.Upload(result, key); err != nil {
		return "", err
	}
	return key, nil
}

func resultsKey(task *Task) string {
	return path.Join(
		"processed",
		"documents",
		task.chunkTask.DocID,
		"chunks",
		task.redisKey,
		task.redisKey+".context_results.json",
	)
}
