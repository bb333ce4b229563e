// Package local is an in-process pattern engine. It evaluates the built-in registry and any
// ad-hoc recognizers of a request with regular expressions only; it does no NLP.
package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"

	"github.com/piiscan/analyzer/internal"
	"github.com/piiscan/analyzer/pkg/models"
	"github.com/piiscan/analyzer/pkg/recognizers"
)

var log = internal.GetLogger()

const (
	contextWindow          = 5
	contextSimilarityBoost = 0.35
	minScoreWithContext    = 0.4
)

var _ models.Engine = &Engine{}

// Engine is safe for concurrent use; it holds no mutable state after construction.
type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// ErrNoRegistry is returned by New when no registry could be loaded.
var ErrNoRegistry = errors.New("no recognizer registry")

// New builds an engine from a registry file, or from the embedded registry when path is empty.
func New(path string) (*Engine, error) {
	var (
		registry *Registry
		err      error
	)
	if path == "" {
		registry, err = DefaultRegistry()
	} else {
		registry, err = LoadRegistry(path)
	}
	if err != nil {
		return nil, errors.Join(ErrNoRegistry, err)
	}
	return NewEngine(registry), nil
}

// candidate is a match before thresholding and ordering.
type candidate struct {
	result  models.RecognitionResult
	explain models.DecisionProcess
}

func (e *Engine) Analyze(
	ctx context.Context,
	req *models.AnalysisRequest,
) ([]models.RecognitionResult, error) {
	if !e.registry.Supports(req.Language) {
		return nil, unsupportedLanguage("analyze", req.Language)
	}

	active := make([]registered, 0)
	active = append(active, e.registry.forLanguage(req.Language)...)
	for _, rec := range req.AdHocRecognizers {
		if rec.SupportedLanguage == "" || rec.SupportedLanguage == req.Language {
			active = append(active, registered{rec: rec})
		}
	}

	// An empty filter selects every entity type, the same as an absent one.
	var wanted map[string]bool
	if len(req.Entities) > 0 {
		wanted = make(map[string]bool, len(req.Entities))
		for _, entity := range req.Entities {
			wanted[entity] = true
		}
	}

	text := []rune(req.Text)
	var found []candidate
	for _, entry := range active {
		if wanted != nil && !wanted[entry.rec.SupportedEntity] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &models.EngineError{Op: "analyze", Err: err}
		}
		matches, err := applyRecognizer(entry.rec, req, text)
		if err != nil {
			return nil, &models.EngineError{
				Op:      "analyze",
				Message: fmt.Sprintf("recognizer %s failed: %s", entry.rec.Name, err),
				Err:     err,
			}
		}
		found = append(found, matches...)
	}

	found = dedupe(found)

	results := make([]models.RecognitionResult, 0, len(found))
	for _, c := range found {
		if req.ScoreThreshold != nil && c.result.Score < *req.ScoreThreshold {
			continue
		}
		r := c.result
		if req.ReturnDecisionProcess {
			explain := c.explain
			r.DecisionProcess = &explain
		}
		results = append(results, r)
	}

	log.Debugf("local engine found %d result(s) for correlation id %q", len(results), req.CorrelationID)

	return results, nil
}

func (e *Engine) Recognizers(
	_ context.Context,
	language string,
) ([]models.RecognizerDescriptor, error) {
	if !e.registry.Supports(language) {
		return nil, unsupportedLanguage("recognizers", language)
	}
	entries := e.registry.forLanguage(language)
	out := make([]models.RecognizerDescriptor, len(entries))
	for i, entry := range entries {
		out[i] = models.RecognizerDescriptor{
			ID:                entry.id,
			Name:              entry.rec.Name,
			SupportedEntities: []string{entry.rec.SupportedEntity},
			SupportedLanguage: language,
			Version:           entry.rec.Version,
		}
	}
	return out, nil
}

func (e *Engine) SupportedEntities(_ context.Context, language string) ([]string, error) {
	var languages []string
	if language == "" {
		languages = e.registry.Languages()
	} else {
		if !e.registry.Supports(language) {
			return nil, unsupportedLanguage("supported_entities", language)
		}
		languages = []string{language}
	}

	var out []string
	for _, l := range languages {
		for _, entry := range e.registry.forLanguage(l) {
			out = append(out, entry.rec.SupportedEntity)
		}
	}
	return out, nil
}

func unsupportedLanguage(op, language string) error {
	return &models.EngineError{
		Op:           op,
		Message:      fmt.Sprintf("no recognizers available for language: %s", language),
		ClientCaused: true,
	}
}

func applyRecognizer(
	rec recognizers.AdHocRecognizer,
	req *models.AnalysisRequest,
	text []rune,
) ([]candidate, error) {
	var out []candidate

	for _, p := range rec.Patterns {
		err := eachMatch(p.Regexp(), text, func(start, end int) {
			if isAllowed(rec, text[start:end]) {
				return
			}
			out = append(out, newCandidate(rec, req, text, start, end, p.Name, p.Regex, p.Score))
		})
		if err != nil {
			return nil, err
		}
	}

	if re := rec.DenyListRegexp(); re != nil {
		err := eachMatch(re, text, func(start, end int) {
			out = append(out, newCandidate(rec, req, text, start, end, "deny_list", re.String(), rec.DenyListScore))
		})
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// eachMatch calls fn with the rune offsets of every non-empty match.
func eachMatch(re *regexp2.Regexp, text []rune, fn func(start, end int)) error {
	m, err := re.FindRunesMatch(text)
	for m != nil && err == nil {
		if m.Length > 0 {
			fn(m.Index, m.Index+m.Length)
		}
		m, err = re.FindNextMatch(m)
	}
	return err
}

func isAllowed(rec recognizers.AdHocRecognizer, matched []rune) bool {
	s := string(matched)
	for _, allowed := range rec.AllowList {
		if s == allowed {
			return true
		}
	}
	return false
}

func newCandidate(
	rec recognizers.AdHocRecognizer,
	req *models.AnalysisRequest,
	text []rune,
	start, end int,
	patternName, pattern string,
	score float64,
) candidate {
	explain := models.DecisionProcess{
		Recognizer:    rec.Name,
		PatternName:   patternName,
		Pattern:       pattern,
		OriginalScore: score,
		Score:         score,
		TextualExplanation: fmt.Sprintf(
			"Detected by `%s` using pattern `%s`", rec.Name, patternName,
		),
	}

	if word := supportiveContextWord(text[:start], rec.Context, req.Context); word != "" {
		boosted := math.Min(score+contextSimilarityBoost, 1.0)
		boosted = math.Max(boosted, minScoreWithContext)
		explain.Score = boosted
		explain.ScoreContextImprovement = boosted - score
		explain.SupportiveContextWord = word
		score = boosted
	}

	return candidate{
		result: models.RecognitionResult{
			EntityType: rec.SupportedEntity,
			Start:      start,
			End:        end,
			Score:      score,
		},
		explain: explain,
	}
}

// supportiveContextWord looks for a context word in the last few words before a match.
func supportiveContextWord(prefix []rune, recognizerContext, requestContext []string) string {
	if len(recognizerContext) == 0 && len(requestContext) == 0 {
		return ""
	}

	words := strings.FieldsFunc(strings.ToLower(string(prefix)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(words) > contextWindow {
		words = words[len(words)-contextWindow:]
	}

	for _, group := range [][]string{recognizerContext, requestContext} {
		for _, keyword := range group {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			for _, w := range words {
				if strings.Contains(w, keyword) {
					return keyword
				}
			}
		}
	}
	return ""
}

// dedupe keeps the highest scoring candidate per entity span and orders the survivors by
// position, then entity type.
func dedupe(in []candidate) []candidate {
	type span struct {
		entity     string
		start, end int
	}
	best := make(map[span]int, len(in))
	var out []candidate
	for _, c := range in {
		key := span{c.result.EntityType, c.result.Start, c.result.End}
		if i, ok := best[key]; ok {
			if c.result.Score > out[i].result.Score {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].result, out[j].result
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.EntityType < b.EntityType
	})
	return out
}
