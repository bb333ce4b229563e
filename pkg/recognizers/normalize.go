package recognizers

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = newValidator()

// rawDefinition is the intermediate form a Definition is decoded into before validation.
type rawDefinition struct {
	Name              string       `mapstructure:"name"               validate:"required"`
	SupportedEntity   string       `mapstructure:"supported_entity"   validate:"required"`
	SupportedLanguage string       `mapstructure:"supported_language"`
	Version           string       `mapstructure:"version"`
	Patterns          []rawPattern `mapstructure:"patterns"           validate:"required,min=1,dive"`
	Context           []string     `mapstructure:"context"            validate:"omitempty,dive,required"`
	DenyList          []string     `mapstructure:"deny_list"          validate:"omitempty,dive,required"`
	DenyListScore     *float64     `mapstructure:"deny_list_score"    validate:"omitempty,min=0,max=1"`
	AllowList         []string     `mapstructure:"allow_list"`
	GlobalRegexFlags  *int         `mapstructure:"global_regex_flags" validate:"omitempty,min=0"`
}

type rawPattern struct {
	Name  string   `mapstructure:"name"  validate:"required"`
	Regex string   `mapstructure:"regex" validate:"required"`
	Score *float64 `mapstructure:"score" validate:"required,min=0,max=1"`
}

// DefinitionError reports why a definition could not be normalized.
type DefinitionError struct {
	// Index is the position of the definition in its batch.
	Index int
	// Name is the definition's name when one could be read.
	Name string
	// Field is the offending field within the definition, e.g. "patterns[0].regex".
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	subject := fmt.Sprintf("ad-hoc recognizer at index %d", e.Index)
	if e.Name != "" {
		subject = fmt.Sprintf("%s (%s)", subject, e.Name)
	}
	return fmt.Sprintf("invalid %s: %s", subject, e.Reason)
}

// Result is the outcome of normalizing a batch: either every recognizer, in input order, or
// the failure of the first bad definition.
type Result struct {
	recognizers []AdHocRecognizer
	err         *DefinitionError
}

// OK reports whether the whole batch was normalized.
func (r Result) OK() bool {
	return r.err == nil
}

// Recognizers returns the normalized recognizers. It is nil when the batch failed.
func (r Result) Recognizers() []AdHocRecognizer {
	return r.recognizers
}

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Unwrap returns the result in the usual (value, error) shape.
func (r Result) Unwrap() ([]AdHocRecognizer, error) {
	return r.recognizers, r.Err()
}

// Normalize validates and converts a batch of definitions. It has no side effects and never
// returns a partial batch.
func Normalize(defs []Definition) Result {
	if len(defs) == 0 {
		return Result{}
	}

	out := make([]AdHocRecognizer, 0, len(defs))
	for i, def := range defs {
		rec, err := normalizeOne(i, def)
		if err != nil {
			return Result{err: err}
		}
		out = append(out, rec)
	}
	return Result{recognizers: out}
}

func normalizeOne(index int, def Definition) (AdHocRecognizer, *DefinitionError) {
	name, _ := def["name"].(string)
	fail := func(field, reason string) (AdHocRecognizer, *DefinitionError) {
		return AdHocRecognizer{}, &DefinitionError{
			Index:  index,
			Name:   name,
			Field:  field,
			Reason: reason,
		}
	}

	if def == nil {
		return fail("", "definition must be an object")
	}

	var raw rawDefinition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  rejectFractionalInts,
		ErrorUnused: true,
		MatchName:   func(mapKey, fieldName string) bool { return mapKey == fieldName },
		Result:      &raw,
	})
	if err != nil {
		return fail("", err.Error())
	}
	if err := decoder.Decode(map[string]any(def)); err != nil {
		field, reason := describeDecodeError(err)
		return fail(field, reason)
	}

	if err := validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field, reason := describeFieldError(fieldErrs[0])
			return fail(field, reason)
		}
		return fail("", err.Error())
	}

	flags := DefaultRegexFlags
	if raw.GlobalRegexFlags != nil {
		flags = *raw.GlobalRegexFlags
		if unknown := flags &^ supportedFlags; unknown != 0 {
			return fail("global_regex_flags", fmt.Sprintf("unsupported regex flags: %d", unknown))
		}
	}
	opts := regexOptions(flags)

	patterns := make([]Pattern, len(raw.Patterns))
	for i, p := range raw.Patterns {
		re, err := regexp2.Compile(p.Regex, opts)
		if err != nil {
			return fail(
				fmt.Sprintf("patterns[%d].regex", i),
				fmt.Sprintf("invalid regex in pattern %q: %s", p.Name, err),
			)
		}
		re.MatchTimeout = DefaultMatchTimeout
		patterns[i] = Pattern{Name: p.Name, Regex: p.Regex, Score: *p.Score, re: re}
	}

	denyListRe, err := compileDenyList(raw.DenyList, opts)
	if err != nil {
		return fail("deny_list", fmt.Sprintf("invalid deny list: %s", err))
	}

	denyListScore := DefaultDenyListScore
	if raw.DenyListScore != nil {
		denyListScore = *raw.DenyListScore
	}

	return AdHocRecognizer{
		Name:              raw.Name,
		SupportedEntity:   raw.SupportedEntity,
		SupportedLanguage: raw.SupportedLanguage,
		Version:           raw.Version,
		Patterns:          patterns,
		Context:           cloneStrings(raw.Context),
		DenyList:          cloneStrings(raw.DenyList),
		DenyListScore:     denyListScore,
		AllowList:         cloneStrings(raw.AllowList),
		RegexFlags:        flags,
		denyListRe:        denyListRe,
	}, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// rejectFractionalInts keeps mapstructure from truncating a number such as 2.9 into an
// integer field.
func rejectFractionalInts(_ reflect.Type, to reflect.Type, data any) (any, error) {
	for to.Kind() == reflect.Pointer {
		to = to.Elem()
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("must be an integer, got %v", f)
	}
	return data, nil
}

var (
	quotedField  = regexp.MustCompile(`^'([^']*)'`)
	hookFailure  = regexp.MustCompile(`^error decoding '([^']*)': (.*)$`)
	unusedFields = regexp.MustCompile(`^'([^']*)' has invalid keys: (.*)$`)
)

// describeDecodeError extracts the first decode failure. mapstructure reports fields as
// 'patterns[0].score' at the start of each message.
func describeDecodeError(err error) (field, reason string) {
	var msErr *mapstructure.Error
	if errors.As(err, &msErr) && len(msErr.Errors) > 0 {
		reason = msErr.Errors[0]
	} else {
		reason = err.Error()
	}
	if m := hookFailure.FindStringSubmatch(reason); m != nil {
		return m[1], m[1] + " " + m[2]
	}
	if m := unusedFields.FindStringSubmatch(reason); m != nil {
		return m[1], "unknown field(s): " + m[2]
	}
	if m := quotedField.FindStringSubmatch(reason); m != nil {
		field = m[1]
	}
	return field, reason
}

func describeFieldError(fe validator.FieldError) (field, reason string) {
	field = fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		if strings.HasSuffix(field, "]") {
			return field, fmt.Sprintf("%s must not be empty", field)
		}
		return field, "missing required field: " + field
	case "min":
		if fe.Kind() == reflect.Slice {
			return field, fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return field, fmt.Sprintf("%s must be >= %s, got %v", field, fe.Param(), fe.Value())
	case "max":
		return field, fmt.Sprintf("%s must be <= %s, got %v", field, fe.Param(), fe.Value())
	}
	return field, fmt.Sprintf("%s failed %q validation", field, fe.Tag())
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
