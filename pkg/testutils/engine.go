package testutils

import (
	"context"
	"sync"

	"github.com/piiscan/analyzer/pkg/models"
)

var _ models.Engine = &FakeEngine{}

// FakeEngine is a scripted models.Engine that records how it was called.
type FakeEngine struct {
	mu sync.Mutex

	Results     []models.RecognitionResult
	Descriptors []models.RecognizerDescriptor
	Entities    []string
	Err         error

	analyzeCalls  int
	lastRequest   *models.AnalysisRequest
	lastLanguages []string
}

func (f *FakeEngine) Analyze(
	_ context.Context,
	req *models.AnalysisRequest,
) ([]models.RecognitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.analyzeCalls++
	f.lastRequest = req
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Results, nil
}

func (f *FakeEngine) Recognizers(
	_ context.Context,
	language string,
) ([]models.RecognizerDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastLanguages = append(f.lastLanguages, language)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Descriptors, nil
}

func (f *FakeEngine) SupportedEntities(_ context.Context, language string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastLanguages = append(f.lastLanguages, language)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Entities, nil
}

// AnalyzeCalls returns how many times Analyze was invoked.
func (f *FakeEngine) AnalyzeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls
}

// LastRequest returns the request passed to the most recent Analyze call.
func (f *FakeEngine) LastRequest() *models.AnalysisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

// LastLanguage returns the language passed to the most recent listing call.
func (f *FakeEngine) LastLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lastLanguages) == 0 {
		return ""
	}
	return f.lastLanguages[len(f.lastLanguages)-1]
}
