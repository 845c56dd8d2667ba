package tasks

import (
	"github.com/jianlins/FastContext/redis"
)

// Client reads and updates the task records the sequencer shares with the
// workers, one redis database per record kind.
type Client struct {
	Documents DocumentTasks
	Chunks    ChunkTasks
	Jobs      JobTasks
}

func NewClient() (Client, error) {
	var opened []*redis.Client
	open := func(db redis.DB) (*redis.Client, error) {
		client, err := redis.NewClient(db)
		if err != nil {
			closeAll(opened)
			return nil, err
		}
		opened = append(opened, client)
		return client, nil
	}

	documents, err := open(DocumentsDB)
	if err != nil {
		return Client{}, err
	}
	jobs, err := open(JobsDB)
	if err != nil {
		return Client{}, err
	}
	chunks, err := open(ChunksDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Documents: DocumentTasks{client: documents},
		Jobs:      JobTasks{client: jobs},
		Chunks:    ChunkTasks{client: chunks},
	}, nil
}

func (client *Client) Close() {
	closeAll([]*redis.Client{client.Chunks.client, client.Documents.client, client.Jobs.client})
}

func closeAll(clients []*redis.Client) {
	for _, client := range clients {
		if client != nil {
			_ = client.Close()
		}
	}
}

// cachedPropertiesKey is where the sequencer mirrors the fields workers read.
func cachedPropertiesKey(redisKey string) string {
	return redisKey + "-cached-properties"
}
