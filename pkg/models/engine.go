package models

import "context"

// Engine is the analysis engine the HTTP layer fronts. Implementations must be safe for
// concurrent use; handlers share a single instance and never lock it.
type Engine interface {
	// Analyze scans req.Text and returns results in the engine's own order.
	Analyze(ctx context.Context, req *AnalysisRequest) ([]RecognitionResult, error)
	// Recognizers lists the recognizers loaded for language.
	Recognizers(ctx context.Context, language string) ([]RecognizerDescriptor, error)
	// SupportedEntities lists the entity types the engine can detect. An empty language means
	// all languages.
	SupportedEntities(ctx context.Context, language string) ([]string, error)
}
