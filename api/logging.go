package api

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/jianlins/FastContext/logger"
	"github.com/rs/zerolog"
)

const (
	RequestInfoFieldsKey = "request_info"
	RequestIDHeader      = "X-Request-ID"
)

var (
	defaultLogger = logger.NewLogger("API")
	requestCount  atomic.Uint64
)

type endpointLoggerFields struct {
	Method string `json:"method"`
	Url    string `json:"url"`
}

// requestID is the caller's X-Request-ID, or a process-local sequence number.
func requestID(request *http.Request) string {
	if id := request.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return fmt.Sprintf("api-%d", requestCount.Add(1))
}

func makeRequestLogger(request *http.Request, tid string) zerolog.Logger {
	fields := endpointLoggerFields{
		Method: request.Method,
		Url:    request.URL.String(),
	}
	return defaultLogger.With().
		Interface(RequestInfoFieldsKey, fields).
		Str("tid", tid).
		Logger()
}
