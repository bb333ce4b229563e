package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piiscan/analyzer/config"
	"github.com/piiscan/analyzer/pkg/models"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithClient(srv.URL+"/", NewRetryableHTTPClient(0, 5*time.Second))
}

func newRequest(t *testing.T, body string) *models.AnalysisRequest {
	t.Helper()
	req, err := models.NewAnalysisRequest(strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestNew(t *testing.T) {
	_, err := New(config.EngineConfig{ServerURL: "ftp://example.com", Timeout: time.Second})
	assert.Error(t, err)

	engine, err := New(config.EngineConfig{ServerURL: "http://localhost:5002/", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5002", engine.baseURL)
}

func TestAnalyze(t *testing.T) {
	var received map[string]any
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, config.UserAgent(), r.Header.Get("User-Agent"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"entity_type": "PHONE_NUMBER", "start": 17, "end": 25, "score": 0.85,
			 "recognition_metadata": {"recognizer_name": "PhoneRecognizer"},
			 "analysis_explanation": {"recognizer": "PhoneRecognizer", "original_score": 0.5, "score": 0.85,
			  "supportive_context_word": "phone", "validation_result": null}}
		]`))
	})

	req := newRequest(t, `{
		"text": "John's phone is 555-1234",
		"language": "en",
		"correlation_id": "abc-123",
		"score_threshold": 0,
		"return_decision_process": true,
		"context": ["phone"],
		"ad_hoc_recognizers": [{
			"name": "Zip",
			"supported_entity": "ZIP",
			"patterns": [{"name": "zip", "regex": "\\d{5}", "score": 0.4}]
		}]
	}`)

	results, err := engine.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "PHONE_NUMBER", r.EntityType)
	assert.Equal(t, 17, r.Start)
	assert.Equal(t, 25, r.End)
	assert.Equal(t, 0.85, r.Score)
	require.NotNil(t, r.DecisionProcess)
	assert.Equal(t, "PhoneRecognizer", r.DecisionProcess.Recognizer)
	assert.Equal(t, "phone", r.DecisionProcess.SupportiveContextWord)
	assert.Nil(t, r.DecisionProcess.ValidationResult)

	assert.Equal(t, "John's phone is 555-1234", received["text"])
	assert.Equal(t, "abc-123", received["correlation_id"])
	assert.Equal(t, 0.0, received["score_threshold"])
	assert.Equal(t, true, received["return_decision_process"])
	assert.Equal(t, []any{"phone"}, received["context"])
	assert.NotContains(t, received, "entities")

	adHoc, ok := received["ad_hoc_recognizers"].([]any)
	require.True(t, ok)
	require.Len(t, adHoc, 1)
	rule := adHoc[0].(map[string]any)
	assert.Equal(t, "Zip", rule["name"])
	assert.Equal(t, "ZIP", rule["supported_entity"])
	assert.Equal(t, 26.0, rule["global_regex_flags"])
}

func TestAnalyze_DropsDecisionProcessWhenNotRequested(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"entity_type": "URL", "start": 0, "end": 5, "score": 0.6,
			"decision_process": {"recognizer": "UrlRecognizer"}}]`))
	})

	results, err := engine.Analyze(context.Background(), newRequest(t, `{"text": "a.com", "language": "en"}`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].DecisionProcess)
}

func TestAnalyze_EmptyEntityFilter(t *testing.T) {
	var received map[string]any
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`[{"entity_type": "EMAIL_ADDRESS", "start": 0, "end": 6, "score": 1.0}]`))
	})

	results, err := engine.Analyze(context.Background(),
		newRequest(t, `{"text": "a@b.io", "language": "en", "entities": []}`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "EMAIL_ADDRESS", results[0].EntityType)
	assert.NotContains(t, received, "entities")
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantMessage  string
		clientCaused bool
	}{
		{
			name:         "client error with detail",
			status:       http.StatusBadRequest,
			body:         `{"detail": "No matching recognizers were found to serve the request."}`,
			wantMessage:  "No matching recognizers were found to serve the request.",
			clientCaused: true,
		},
		{
			name:         "payload too large",
			status:       http.StatusRequestEntityTooLarge,
			body:         "",
			wantMessage:  "Request Entity Too Large",
			clientCaused: true,
		},
		{
			name:        "server error with detail",
			status:      http.StatusInternalServerError,
			body:        `{"detail": "model not loaded"}`,
			wantMessage: "model not loaded",
		},
		{
			name:        "server error with plain body",
			status:      http.StatusBadGateway,
			body:        "upstream exploded",
			wantMessage: "upstream exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := engine.Analyze(context.Background(), newRequest(t, `{"text": "a", "language": "en"}`))
			require.Error(t, err)

			var engineErr *models.EngineError
			require.True(t, errors.As(err, &engineErr))
			assert.Equal(t, tt.wantMessage, engineErr.Error())
			assert.Equal(t, tt.clientCaused, engineErr.ClientCaused)
			assert.ErrorIs(t, err, ErrUpstreamStatus)
			assert.ErrorIs(t, err, models.ErrEngine)
		})
	}
}

func TestAnalyze_InvalidResponse(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	})

	_, err := engine.Analyze(context.Background(), newRequest(t, `{"text": "a", "language": "en"}`))
	require.Error(t, err)

	var engineErr *models.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.False(t, engineErr.ClientCaused)
	assert.Contains(t, err.Error(), "invalid analyze response")
}

func TestAnalyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	engine := NewWithClient(srv.URL, NewRetryableHTTPClient(0, time.Second))

	_, err := engine.Analyze(context.Background(), newRequest(t, `{"text": "a", "language": "en"}`))
	require.Error(t, err)

	var engineErr *models.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.False(t, engineErr.ClientCaused)
	assert.Contains(t, err.Error(), "analysis engine unreachable")
}

func TestRecognizers(t *testing.T) {
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recognizers", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(`["PhoneRecognizer", "EmailRecognizer"]`))
	})

	descriptors, err := engine.Recognizers(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "PhoneRecognizer", descriptors[0].Name)
	assert.Equal(t, "EmailRecognizer", descriptors[1].Name)
}

func TestSupportedEntities(t *testing.T) {
	var rawQuery string
	engine := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/supportedentities", r.URL.Path)
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`["PERSON", "PHONE_NUMBER", "EMAIL"]`))
	})

	entities, err := engine.SupportedEntities(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PERSON", "PHONE_NUMBER", "EMAIL"}, entities)
	assert.Empty(t, rawQuery)

	_, err = engine.SupportedEntities(context.Background(), "es")
	require.NoError(t, err)
	assert.Equal(t, "language=es", rawQuery)
}
