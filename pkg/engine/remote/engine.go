// Package remote implements the analysis engine as a client of an upstream analyzer service that
// speaks the same HTTP protocol as this one.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/piiscan/analyzer/config"
	"github.com/piiscan/analyzer/internal"
	"github.com/piiscan/analyzer/pkg/models"
	"github.com/piiscan/analyzer/pkg/recognizers"
)

var log = internal.GetLogger()

var _ models.Engine = &Engine{}

// maxResponseSize caps how much of an upstream body is read.
const maxResponseSize = 32 << 20

type Engine struct {
	baseURL string
	client  *http.Client
}

// New returns a remote engine for cfg.ServerURL.
func New(cfg config.EngineConfig) (*Engine, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid engine server_url %q: scheme must be http or https", cfg.ServerURL)
	}
	return NewWithClient(cfg.ServerURL, NewRetryableHTTPClient(cfg.RetryMax, cfg.Timeout)), nil
}

// NewWithClient returns a remote engine that issues requests with client.
func NewWithClient(baseURL string, client *http.Client) *Engine {
	return &Engine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type analyzeRequest struct {
	Text                  string                   `json:"text"`
	Language              string                   `json:"language"`
	Entities              []string                 `json:"entities,omitempty"`
	CorrelationID         string                   `json:"correlation_id,omitempty"`
	ScoreThreshold        *float64                 `json:"score_threshold,omitempty"`
	ReturnDecisionProcess bool                     `json:"return_decision_process,omitempty"`
	AdHocRecognizers      []recognizers.Definition `json:"ad_hoc_recognizers,omitempty"`
	Context               []string                 `json:"context,omitempty"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	// Upstream analyzers name the trace either way.
	DecisionProcess     *decisionProcess `json:"decision_process"`
	AnalysisExplanation *decisionProcess `json:"analysis_explanation"`
}

type decisionProcess struct {
	Recognizer              string  `json:"recognizer"`
	PatternName             string  `json:"pattern_name"`
	Pattern                 string  `json:"pattern"`
	OriginalScore           float64 `json:"original_score"`
	Score                   float64 `json:"score"`
	TextualExplanation      string  `json:"textual_explanation"`
	ScoreContextImprovement float64 `json:"score_context_improvement"`
	SupportiveContextWord   string  `json:"supportive_context_word"`
	ValidationResult        *bool   `json:"validation_result"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (e *Engine) Analyze(
	ctx context.Context,
	req *models.AnalysisRequest,
) ([]models.RecognitionResult, error) {
	body := analyzeRequest{
		Text:                  req.Text,
		Language:              req.Language,
		Entities:              req.Entities,
		CorrelationID:         req.CorrelationID,
		ScoreThreshold:        req.ScoreThreshold,
		ReturnDecisionProcess: req.ReturnDecisionProcess,
		Context:               req.Context,
	}
	for _, rec := range req.AdHocRecognizers {
		body.AdHocRecognizers = append(body.AdHocRecognizers, rec.Definition())
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &models.EngineError{Op: "analyze", Err: err}
	}

	var raw []analyzeResult
	if err := e.do(ctx, "analyze", http.MethodPost, "/analyze", nil, jsonBody, &raw); err != nil {
		return nil, err
	}

	results := make([]models.RecognitionResult, len(raw))
	for i, r := range raw {
		results[i] = models.RecognitionResult{
			EntityType: r.EntityType,
			Start:      r.Start,
			End:        r.End,
			Score:      r.Score,
		}
		if !req.ReturnDecisionProcess {
			continue
		}
		dp := r.DecisionProcess
		if dp == nil {
			dp = r.AnalysisExplanation
		}
		if dp != nil {
			results[i].DecisionProcess = &models.DecisionProcess{
				Recognizer:              dp.Recognizer,
				PatternName:             dp.PatternName,
				Pattern:                 dp.Pattern,
				OriginalScore:           dp.OriginalScore,
				Score:                   dp.Score,
				TextualExplanation:      dp.TextualExplanation,
				ScoreContextImprovement: dp.ScoreContextImprovement,
				SupportiveContextWord:   dp.SupportiveContextWord,
				ValidationResult:        dp.ValidationResult,
			}
		}
	}

	log.Debugf("remote engine returned %d result(s) for correlation id %q", len(results), req.CorrelationID)

	return results, nil
}

// Recognizers returns descriptors carrying only names; the upstream protocol exposes nothing else.
func (e *Engine) Recognizers(
	ctx context.Context,
	language string,
) ([]models.RecognizerDescriptor, error) {
	var names []string
	if err := e.do(ctx, "recognizers", http.MethodGet, "/recognizers", languageQuery(language), nil, &names); err != nil {
		return nil, err
	}
	out := make([]models.RecognizerDescriptor, len(names))
	for i, name := range names {
		out[i] = models.RecognizerDescriptor{Name: name, SupportedLanguage: language}
	}
	return out, nil
}

func (e *Engine) SupportedEntities(ctx context.Context, language string) ([]string, error) {
	var entities []string
	err := e.do(ctx, "supported_entities", http.MethodGet, "/supportedentities", languageQuery(language), nil, &entities)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func languageQuery(language string) url.Values {
	if language == "" {
		return nil
	}
	return url.Values{"language": []string{language}}
}

// do performs a call against the upstream service and decodes a 2xx body into out. Upstream 4xx
// responses are client-caused engine errors; everything else is a server error.
func (e *Engine) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body []byte,
	out any,
) error {
	endpoint := e.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &models.EngineError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return &models.EngineError{
			Op:      op,
			Message: fmt.Sprintf("analysis engine unreachable: %s", err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &models.EngineError{
			Op:      op,
			Message: fmt.Sprintf("failed to read analysis engine response: %s", err),
			Err:     err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(op, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &models.EngineError{
			Op:      op,
			Message: fmt.Sprintf("analysis engine returned an invalid %s response: %s", op, err),
			Err:     err,
		}
	}
	return nil
}

// ErrUpstreamStatus is wrapped by errors built from non-2xx upstream responses.
var ErrUpstreamStatus = errors.New("unexpected analysis engine status")

func upstreamError(op string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Detail != "" {
		message = eb.Detail
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return &models.EngineError{
		Op:           op,
		Message:      message,
		ClientCaused: status >= 400 && status < 500,
		Err:          fmt.Errorf("%w: %d", ErrUpstreamStatus, status),
	}
}
