package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/pipeline"
	"github.com/jianlins/FastContext/tokenizer"
	"github.com/jianlins/FastContext/types"
	"github.com/rs/zerolog"
)

const maxBodySize = 16 << 20

var ErrUnknownConfig = errors.New("api: unknown configuration")

type Request struct {
	Pipeline    pipeline.Pipeline
	Classifiers []pipeline.Classifier
	Metrics     *metrics.Metrics
}

// Routes mounts the endpoints on mux.
func (req *Request) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", req.ProcessData)
	mux.HandleFunc("/classify", req.Classify)
	if req.Metrics != nil {
		mux.Handle("/metrics", req.Metrics.Handler())
	}
}

// ProcessData classifies the concepts of a document with every configuration.
func (req *Request) ProcessData(w http.ResponseWriter, r *http.Request) {
	tid := requestID(r)
	logger := makeRequestLogger(r, tid)
	body, ok := req.readBody(w, r, &logger)
	if !ok {
		return
	}

	doc, err := pipeline.ParseDocument(body)
	if err != nil {
		req.fail(w, r, &logger, http.StatusBadRequest, err, "Invalid document")
		return
	}

	logger.Info().Int("concepts", len(doc.Concepts)).Msg("Starting pipeline for request from API")
	resp, ok := <-req.Pipeline(pipeline.Request{Tid: tid, Document: doc})
	if !ok {
		req.fail(w, r, &logger, http.StatusInternalServerError, errors.New("pipeline returned no response"), "Pipeline failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
	req.Metrics.ObserveHTTP(r.URL.Path, http.StatusOK)
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}

// ClassifyRequest names a single concept of a tokenized sentence. Tokens
// wins over Sentence, which is split on whitespace. Begin and End are token
// indices, both inclusive.
type ClassifyRequest struct {
	Config   string   `json:"config,omitempty"`
	Tokens   []string `json:"tokens,omitempty"`
	Sentence string   `json:"sentence,omitempty"`
	Begin    int      `json:"begin"`
	End      int      `json:"end"`
	Type     string   `json:"type,omitempty"`
}

type ClassifyResponse struct {
	Config     string          `json:"config"`
	Modifiers  []string        `json:"modifiers"`
	Assertions json.RawMessage `json:"assertions"`
	Features   json.RawMessage `json:"features,omitempty"`
	Polarity   string          `json:"polarity,omitempty"`
}

// Classify classifies one pre-tokenized concept without the document
// pipeline.
func (req *Request) Classify(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r, requestID(r))
	body, ok := req.readBody(w, r, &logger)
	if !ok {
		return
	}

	var in ClassifyRequest
	if err := json.Unmarshal(body, &in); err != nil {
		req.fail(w, r, &logger, http.StatusBadRequest, err, "Could not decode request")
		return
	}
	classifier, err := req.classifier(in.Config)
	if err != nil {
		req.fail(w, r, &logger, http.StatusNotFound, err, "Unknown configuration")
		return
	}
	ruleSet := classifier.Registry.RuleSet()
	if ruleSet == nil {
		req.fail(w, r, &logger, http.StatusServiceUnavailable, errors.New("rules are not loaded"), "Rules are not loaded")
		return
	}

	tokens := types.NewTokens(in.Tokens...)
	if len(in.Tokens) == 0 {
		tokens = tokenizer.Whitespace(in.Sentence)
	}
	assertions, err := ruleSet.MatchContext(tokens, in.Begin, in.End)
	if err != nil {
		req.fail(w, r, &logger, http.StatusUnprocessableEntity, err, "Could not classify concept")
		return
	}
	resp := ClassifyResponse{Config: classifier.Config.Name, Modifiers: assertions.Modifiers()}
	if resp.Assertions, err = json.Marshal(assertions); err != nil {
		req.fail(w, r, &logger, http.StatusInternalServerError, err, "Could not encode assertions")
		return
	}
	if in.Type != "" {
		features, err := ruleSet.ProjectFeatures(assertions, in.Type)
		if err != nil {
			req.fail(w, r, &logger, http.StatusUnprocessableEntity, err, "Could not project features")
			return
		}
		if resp.Features, err = json.Marshal(features); err != nil {
			req.fail(w, r, &logger, http.StatusInternalServerError, err, "Could not encode features")
			return
		}
	}
	if classifier.Config.CheckFeature(types.PolarityAttributes) {
		resp.Polarity = types.PolarityOf(resp.Modifiers, classifier.Config.Negations()).Name()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
	req.Metrics.ObserveHTTP(r.URL.Path, http.StatusOK)
	logger.Info().Int("status", http.StatusOK).Strs("modifiers", resp.Modifiers).Msg("Classified concept")
}

// classifier returns the named classifier, the first one for an empty name.
func (req *Request) classifier(name string) (pipeline.Classifier, error) {
	for _, classifier := range req.Classifiers {
		if name == "" || classifier.Config.Name == name {
			return classifier, nil
		}
	}
	return pipeline.Classifier{}, fmt.Errorf("%w %q", ErrUnknownConfig, name)
}

func (req *Request) readBody(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger) ([]byte, bool) {
	if r.Method != http.MethodPost {
		req.fail(w, r, logger, http.StatusMethodNotAllowed, nil, "Only 'POST' method is allowed here")
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		req.fail(w, r, logger, http.StatusBadRequest, err, "Could not read request body")
		return nil, false
	}
	return body, true
}

func (req *Request) fail(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, status int, err error, msg string) {
	logger.Err(err).Int("status", status).Msg(msg)
	req.Metrics.ObserveHTTP(r.URL.Path, status)
	text := http.StatusText(status)
	if err != nil {
		text = err.Error()
	}
	http.Error(w, text, status)
}
