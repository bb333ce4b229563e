package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adHocJSON(name, entity string) string {
	return fmt.Sprintf(
		`{"name":%q,"supported_entity":%q,"patterns":[{"name":"p","regex":"\\d+","score":0.4}]}`,
		name, entity,
	)
}

func TestNewAnalysisRequest(t *testing.T) {
	body := `{
		"text": "John's phone is 555-1234",
		"language": "en",
		"entities": ["PHONE_NUMBER", "PERSON"],
		"correlation_id": "abc-123",
		"score_threshold": 0.3,
		"return_decision_process": true,
		"context": ["phone"]
	}`

	req, err := NewAnalysisRequest(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "John's phone is 555-1234", req.Text)
	assert.Equal(t, "en", req.Language)
	assert.Equal(t, []string{"PHONE_NUMBER", "PERSON"}, req.Entities)
	assert.Equal(t, "abc-123", req.CorrelationID)
	require.NotNil(t, req.ScoreThreshold)
	assert.Equal(t, 0.3, *req.ScoreThreshold)
	assert.True(t, req.ReturnDecisionProcess)
	assert.Equal(t, []string{"phone"}, req.Context)
	assert.Nil(t, req.AdHocRecognizers)
}

func TestNewAnalysisRequestOptionalFieldsAbsent(t *testing.T) {
	req, err := NewAnalysisRequest(strings.NewReader(`{"text":"hi","language":"en"}`))
	require.NoError(t, err)

	assert.Nil(t, req.Entities)
	assert.Nil(t, req.ScoreThreshold)
	assert.False(t, req.ReturnDecisionProcess)
	assert.Empty(t, req.CorrelationID)
}

func TestNewAnalysisRequestMatchesFieldNamesExactly(t *testing.T) {
	body := `{"text":"hi","language":"en","Score_Threshold":0.9,"ENTITIES":["PERSON"],"extra":1}` + "\n\t "

	req, err := NewAnalysisRequest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "hi", req.Text)
	assert.Nil(t, req.ScoreThreshold)
	assert.Nil(t, req.Entities)
}

func TestNewAnalysisRequestEmptyEntityFilter(t *testing.T) {
	req, err := NewAnalysisRequest(strings.NewReader(`{"text":"hi","language":"en","entities":[]}`))
	require.NoError(t, err)
	assert.NotNil(t, req.Entities)
	assert.Empty(t, req.Entities)
}

func TestNewAnalysisRequestAcceptsAnyThreshold(t *testing.T) {
	req, err := NewAnalysisRequest(strings.NewReader(`{"text":"hi","language":"en","score_threshold":-4}`))
	require.NoError(t, err)
	assert.Equal(t, -4.0, *req.ScoreThreshold)
}

func TestNewAnalysisRequestAdHocRecognizersKeepOrder(t *testing.T) {
	names := []string{"first", "second", "third", "fourth"}
	defs := make([]string, len(names))
	for i, n := range names {
		defs[i] = adHocJSON(n, strings.ToUpper(n))
	}
	body := fmt.Sprintf(`{"text":"t","language":"en","ad_hoc_recognizers":[%s]}`, strings.Join(defs, ","))

	req, err := NewAnalysisRequest(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, req.AdHocRecognizers, len(names))
	for i, n := range names {
		assert.Equal(t, n, req.AdHocRecognizers[i].Name)
		assert.Equal(t, strings.ToUpper(n), req.AdHocRecognizers[i].SupportedEntity)
	}
}

func TestNewAnalysisRequestValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing text",
			body:      `{"language":"en"}`,
			wantField: "text",
			wantMsg:   "missing required field: text",
		},
		{
			name:      "empty text",
			body:      `{"text":"","language":"en"}`,
			wantField: "text",
			wantMsg:   "missing required field: text",
		},
		{
			name:      "missing language",
			body:      `{"text":"hello"}`,
			wantField: "language",
			wantMsg:   "missing required field: language",
		},
		{
			name:      "both missing reports text first",
			body:      `{}`,
			wantField: "text",
			wantMsg:   "missing required field: text",
		},
		{
			name:      "threshold wrong type",
			body:      `{"text":"hi","language":"en","score_threshold":"high"}`,
			wantField: "score_threshold",
			wantMsg:   "invalid value for field score_threshold: expected number, got string",
		},
		{
			name:      "decision process wrong type",
			body:      `{"text":"hi","language":"en","return_decision_process":"yes"}`,
			wantField: "return_decision_process",
			wantMsg:   "invalid value for field return_decision_process: expected boolean, got string",
		},
		{
			name:      "text wrong type",
			body:      `{"text":5,"language":"en"}`,
			wantField: "text",
			wantMsg:   "invalid value for field text: expected string, got number",
		},
		{
			name:    "empty body",
			body:    ``,
			wantMsg: "malformed request body: body is empty",
		},
		{
			name:    "not an object",
			body:    `["text"]`,
			wantMsg: "malformed request body: expected object, got array",
		},
		{
			name:    "data after the object",
			body:    `{"text":"hi","language":"en"}garbage`,
			wantMsg: "malformed request body: unexpected data after JSON object",
		},
		{
			name:    "second object",
			body:    `{"text":"hi","language":"en"} {"text":"again"}`,
			wantMsg: "malformed request body: unexpected data after JSON object",
		},
		{
			name:    "truncated trailing object",
			body:    `{"text":"hi","language":"en"}{"oops"`,
			wantMsg: "malformed request body: unexpected data after JSON object",
		},
		{
			name:      "field names in another case",
			body:      `{"TEXT":"hi","Language":"en"}`,
			wantField: "text",
			wantMsg:   "missing required field: text",
		},
		{
			name: "fractional regex flags",
			body: `{"text":"t","language":"en","ad_hoc_recognizers":[{"name":"Zip","supported_entity":"ZIP",` +
				`"global_regex_flags":2.9,"patterns":[{"name":"zip","regex":"\\d{5}","score":0.4}]}]}`,
			wantField: "ad_hoc_recognizers[0].global_regex_flags",
			wantMsg:   "invalid ad-hoc recognizer at index 0 (Zip): global_regex_flags must be an integer, got 2.9",
		},
		{
			name: "bad ad-hoc recognizer",
			body: fmt.Sprintf(`{"text":"t","language":"en","ad_hoc_recognizers":[%s,{"name":"broken","patterns":[]}]}`,
				adHocJSON("ok", "OK")),
			wantField: "ad_hoc_recognizers[1].supported_entity",
			wantMsg:   "invalid ad-hoc recognizer at index 1 (broken): missing required field: supported_entity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewAnalysisRequest(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, errors.Is(err, ErrBadRequest))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestNewAnalysisRequestSyntaxError(t *testing.T) {
	_, err := NewAnalysisRequest(strings.NewReader(`{"text": "hi",`))
	require.Error(t, err)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.True(t, strings.HasPrefix(vErr.Message, "malformed request body: "))
}

func TestEngineErrorClassification(t *testing.T) {
	cause := errors.New("boom")
	err := &EngineError{Op: "analyze", Err: cause}

	assert.True(t, errors.Is(err, ErrEngine))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrBadRequest))
	assert.Equal(t, "boom", err.Error())

	err = &EngineError{Op: "analyze", Message: "no recognizers for language: xx", ClientCaused: true}
	assert.Equal(t, "no recognizers for language: xx", err.Error())
}
