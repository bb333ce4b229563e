// Package recognizers turns raw ad-hoc recognizer definitions, as they arrive inside an
// analyze request, into validated and compiled rules.
//
// Normalization is a two stage process. A Definition is the inert map decoded from JSON or
// YAML. Normalize decodes every Definition into an intermediate struct, validates it, compiles
// its patterns and only then builds the AdHocRecognizer values. A batch either converts
// completely or not at all.
package recognizers

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Definition is a raw recognizer definition exactly as decoded from a request body or a
// registry file.
type Definition map[string]any

// Flag bits of global_regex_flags. Patterns always match Unicode text, so FlagUnicode is
// accepted and changes nothing. FlagLocale and FlagASCII have no regexp2 equivalent and are
// rejected.
const (
	FlagIgnoreCase = 2
	FlagLocale     = 4
	FlagMultiline  = 8
	FlagDotAll     = 16
	FlagUnicode    = 32
	FlagVerbose    = 64
	FlagASCII      = 256

	DefaultRegexFlags = FlagDotAll | FlagMultiline | FlagIgnoreCase

	supportedFlags = FlagIgnoreCase | FlagMultiline | FlagDotAll | FlagUnicode | FlagVerbose
)

const DefaultDenyListScore = 1.0

// DefaultMatchTimeout bounds a single evaluation of a compiled pattern. regexp2 backtracks and
// the patterns are client supplied.
var DefaultMatchTimeout = 2 * time.Second

// Pattern is a named, compiled regular expression with the confidence it contributes.
type Pattern struct {
	Name  string
	Regex string
	Score float64

	re *regexp2.Regexp
}

// Regexp returns the compiled expression.
func (p Pattern) Regexp() *regexp2.Regexp {
	return p.re
}

// AdHocRecognizer is a validated rule. Values are built only by Normalize and are not
// modified afterwards.
type AdHocRecognizer struct {
	Name            string
	SupportedEntity string
	// SupportedLanguage is empty when the rule applies to whatever language is requested.
	SupportedLanguage string
	Version           string
	Patterns          []Pattern
	Context           []string
	DenyList          []string
	DenyListScore     float64
	AllowList         []string
	RegexFlags        int

	denyListRe *regexp2.Regexp
}

// DenyListRegexp returns the expression matching any deny list word as a whole token, or nil
// when the recognizer has no deny list.
func (r AdHocRecognizer) DenyListRegexp() *regexp2.Regexp {
	return r.denyListRe
}

// Definition renders the recognizer back into its canonical raw form. Normalizing the
// returned Definition yields an equivalent recognizer.
func (r AdHocRecognizer) Definition() Definition {
	patterns := make([]any, len(r.Patterns))
	for i, p := range r.Patterns {
		patterns[i] = map[string]any{
			"name":  p.Name,
			"regex": p.Regex,
			"score": p.Score,
		}
	}

	def := Definition{
		"name":               r.Name,
		"supported_entity":   r.SupportedEntity,
		"patterns":           patterns,
		"global_regex_flags": r.RegexFlags,
	}
	if r.SupportedLanguage != "" {
		def["supported_language"] = r.SupportedLanguage
	}
	if r.Version != "" {
		def["version"] = r.Version
	}
	if len(r.Context) > 0 {
		def["context"] = stringsToAny(r.Context)
	}
	if len(r.DenyList) > 0 {
		def["deny_list"] = stringsToAny(r.DenyList)
		def["deny_list_score"] = r.DenyListScore
	}
	if len(r.AllowList) > 0 {
		def["allow_list"] = stringsToAny(r.AllowList)
	}
	return def
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func compileDenyList(words []string, opts regexp2.RegexOptions) (*regexp2.Regexp, error) {
	if len(words) == 0 {
		return nil, nil
	}
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp2.Escape(w)
	}
	re, err := regexp2.Compile(`(?:^|(?<=\W))(`+strings.Join(escaped, "|")+`)(?:(?=\W)|$)`, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = DefaultMatchTimeout
	return re, nil
}

func regexOptions(flags int) regexp2.RegexOptions {
	opts := regexp2.None
	if flags&FlagIgnoreCase != 0 {
		opts |= regexp2.IgnoreCase
	}
	if flags&FlagMultiline != 0 {
		opts |= regexp2.Multiline
	}
	if flags&FlagDotAll != 0 {
		opts |= regexp2.Singleline
	}
	if flags&FlagVerbose != 0 {
		opts |= regexp2.IgnorePatternWhitespace
	}
	return opts
}
