package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/piiscan/analyzer/pkg/recognizers"
)

var validate = newValidator()

// AnalysisRequest is a validated analyze call. It is only produced by NewAnalysisRequest and
// must be treated as read-only afterwards.
type AnalysisRequest struct {
	Text     string
	Language string
	// Entities restricts detection to these entity types. Nil or empty means all supported types.
	Entities      []string
	CorrelationID string
	// ScoreThreshold is nil when the caller left it to the engine.
	ScoreThreshold        *float64
	ReturnDecisionProcess bool
	AdHocRecognizers      []recognizers.AdHocRecognizer
	Context               []string
}

// analysisRequestBody is the wire shape of an analyze request.
type analysisRequestBody struct {
	Text                  string                   `json:"text"                    validate:"required"`
	Language              string                   `json:"language"                validate:"required"`
	Entities              []string                 `json:"entities"`
	CorrelationID         string                   `json:"correlation_id"`
	ScoreThreshold        *float64                 `json:"score_threshold"`
	ReturnDecisionProcess *bool                    `json:"return_decision_process"`
	AdHocRecognizers      []recognizers.Definition `json:"ad_hoc_recognizers"`
	Context               []string                 `json:"context"`
}

// NewAnalysisRequest decodes and validates an analyze request body. Any failure is returned as
// a *ValidationError and no request is produced.
func NewAnalysisRequest(body io.Reader) (*AnalysisRequest, error) {
	dec := json.NewDecoder(body)
	var msg json.RawMessage
	if err := dec.Decode(&msg); err != nil {
		return nil, decodeError(err)
	}
	if err := expectEnd(dec); err != nil {
		return nil, err
	}

	raw, err := decodeBody(msg)
	if err != nil {
		return nil, decodeError(err)
	}

	if err := validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, NewMissingFieldError(fieldErrs[0].Field())
		}
		return nil, NewValidationError("", err.Error())
	}

	adHoc, err := recognizers.Normalize(raw.AdHocRecognizers).Unwrap()
	if err != nil {
		field := "ad_hoc_recognizers"
		var defErr *recognizers.DefinitionError
		if errors.As(err, &defErr) {
			field = fmt.Sprintf("%s[%d]", field, defErr.Index)
			if defErr.Field != "" {
				field += "." + defErr.Field
			}
		}
		return nil, NewValidationError(field, err.Error())
	}

	req := &AnalysisRequest{
		Text:             raw.Text,
		Language:         raw.Language,
		Entities:         raw.Entities,
		CorrelationID:    raw.CorrelationID,
		ScoreThreshold:   raw.ScoreThreshold,
		AdHocRecognizers: adHoc,
		Context:          raw.Context,
	}
	if raw.ReturnDecisionProcess != nil {
		req.ReturnDecisionProcess = *raw.ReturnDecisionProcess
	}
	return req, nil
}

// expectEnd rejects anything but whitespace after the request object.
func expectEnd(dec *json.Decoder) error {
	var extra json.RawMessage
	err := dec.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return decodeError(err)
	}
	return NewValidationError("", "malformed request body: unexpected data after JSON object")
}

// bodyFields are the wire names of analysisRequestBody.
var bodyFields = jsonFieldNames(reflect.TypeOf(analysisRequestBody{}))

// decodeBody decodes msg into the wire struct. Keys must match the snake_case field names
// exactly; keys differing only in case are ignored like any other unknown key.
func decodeBody(msg json.RawMessage) (analysisRequestBody, error) {
	var raw analysisRequestBody

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
		// Not an object; decoding into the struct reports the type mismatch.
		err := json.Unmarshal(msg, &raw)
		return raw, err
	}

	known := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		if bodyFields[key] {
			known[key] = value
		}
	}
	filtered, err := json.Marshal(known)
	if err != nil {
		return raw, err
	}
	err = json.Unmarshal(filtered, &raw)
	return raw, err
}

func jsonFieldNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		if name != "" && name != "-" {
			names[name] = true
		}
	}
	return names
}

func decodeError(err error) error {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return NewValidationError("", "malformed request body: body is empty")
	case errors.As(err, &maxErr):
		return NewValidationError("", fmt.Sprintf("request body too large: limit is %d bytes", maxErr.Limit))
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return NewValidationError("", fmt.Sprintf(
				"malformed request body: expected %s, got %s", describeType(typeErr.Type), typeErr.Value,
			))
		}
		return NewValidationError(typeErr.Field, fmt.Sprintf(
			"invalid value for field %s: expected %s, got %s",
			typeErr.Field, describeType(typeErr.Type), typeErr.Value,
		))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return NewValidationError("", "malformed request body: "+err.Error())
	}
	return NewValidationError("", "malformed request body: "+err.Error())
}

// describeType names a Go type the way a JSON client would.
func describeType(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return describeType(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return t.String()
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
