package server

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/piiscan/analyzer/pkg/models"
)

// resultFields is the wire form of a single result. encoding/json sorts map keys, so the
// rendered object always has its keys in alphabetical order.
func resultFields(r models.RecognitionResult, withDecisionProcess bool) (map[string]any, error) {
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		return nil, fmt.Errorf("result %s [%d, %d) has a non-finite score", r.EntityType, r.Start, r.End)
	}
	if r.Start < 0 || r.End < r.Start {
		return nil, fmt.Errorf("result %s has an invalid span [%d, %d)", r.EntityType, r.Start, r.End)
	}

	fields := map[string]any{
		"entity_type": r.EntityType,
		"start":       r.Start,
		"end":         r.End,
		"score":       r.Score,
	}
	if withDecisionProcess && r.DecisionProcess != nil {
		fields["decision_process"] = decisionFields(r.DecisionProcess)
	}
	return fields, nil
}

func decisionFields(dp *models.DecisionProcess) map[string]any {
	fields := map[string]any{
		"recognizer":                dp.Recognizer,
		"pattern_name":              dp.PatternName,
		"pattern":                   dp.Pattern,
		"original_score":            dp.OriginalScore,
		"score":                     dp.Score,
		"textual_explanation":       dp.TextualExplanation,
		"score_context_improvement": dp.ScoreContextImprovement,
		"supportive_context_word":   dp.SupportiveContextWord,
		"validation_result":         nil,
	}
	if dp.ValidationResult != nil {
		fields["validation_result"] = *dp.ValidationResult
	}
	return fields
}

// renderResults renders results in the order the engine returned them.
func renderResults(results []models.RecognitionResult, withDecisionProcess bool) ([]byte, error) {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		fields, err := resultFields(r, withDecisionProcess)
		if err != nil {
			return nil, &models.SerializationError{Err: err}
		}
		out = append(out, fields)
	}
	return marshal(out)
}

// renderIdentifiers renders a sorted list of identifiers without duplicates.
func renderIdentifiers(ids []string) ([]byte, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		out = append(out, id)
	}
	return marshal(out)
}

// renderNames renders recognizer names in engine order.
func renderNames(descriptors []models.RecognizerDescriptor) ([]byte, error) {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Name
	}
	return marshal(out)
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &models.SerializationError{Err: err}
	}
	return b, nil
}
