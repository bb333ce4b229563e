package models

// RecognitionResult is a single entity detected by the engine. Offsets are character
// (code point) positions in the analyzed text, End exclusive.
type RecognitionResult struct {
	EntityType string
	Start      int
	End        int
	Score      float64
	// DecisionProcess is only populated when the request asked for it.
	DecisionProcess *DecisionProcess
}

// DecisionProcess explains how a result was produced.
type DecisionProcess struct {
	Recognizer              string
	PatternName             string
	Pattern                 string
	OriginalScore           float64
	Score                   float64
	TextualExplanation      string
	ScoreContextImprovement float64
	SupportiveContextWord   string
	ValidationResult        *bool
}

// RecognizerDescriptor describes a recognizer known to the engine.
type RecognizerDescriptor struct {
	ID                string
	Name              string
	SupportedEntities []string
	SupportedLanguage string
	Version           string
}
