package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/piiscan/analyzer/internal"
	"github.com/piiscan/analyzer/pkg/metrics"
	"github.com/piiscan/analyzer/pkg/models"
)

var log = internal.GetLogger()

const healthMessage = "Analyzer service is up"

// HealthHandler godoc
//
//	@Summary		Service health
//	@Description	returns a fixed string while the service is able to serve requests
//	@Tags			health
//	@Produce		plain
//	@Success		200	{string}	string	"Analyzer service is up"
//	@Router			/health [get]
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(healthMessage))
}

// AnalyzeHandler godoc
//
//	@Summary		Analyze text
//	@Description	detect entities in text using built-in and ad-hoc recognizers
//	@Tags			analyze
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.AnalysisRequest	true	"Analysis request"
//	@Success		200		{array}		object
//	@Failure		400		{object}	APIError	"Bad Request"
//	@Failure		500		{object}	APIError	"Internal Server Error"
//	@Security		Bearer
//	@Router			/analyze [post]
func AnalyzeHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := models.NewAnalysisRequest(r.Body)
		if err != nil {
			renderError(w, r, err, "")
			return
		}

		log.WithField("correlation_id", req.CorrelationID).Debugf(
			"Starting analyzer engine for %d character(s) in language %s",
			len([]rune(req.Text)), req.Language,
		)

		start := time.Now()
		results, err := appState.Engine.Analyze(r.Context(), req)
		observeEngine("analyze", start, err)
		if err != nil {
			renderError(w, r, err, req.CorrelationID)
			return
		}

		body, err := renderResults(results, req.ReturnDecisionProcess)
		if err != nil {
			renderError(w, r, err, req.CorrelationID)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// RecognizersHandler godoc
//
//	@Summary		List recognizers
//	@Description	names of the recognizers loaded for a language
//	@Tags			analyze
//	@Produce		json
//	@Param			language	query		string	true	"Language code"
//	@Success		200			{array}		string
//	@Failure		400			{object}	APIError	"Bad Request"
//	@Failure		500			{object}	APIError	"Internal Server Error"
//	@Security		Bearer
//	@Router			/recognizers [get]
func RecognizersHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")
		if language == "" {
			renderError(w, r, models.NewMissingFieldError("language"), "")
			return
		}

		log.Debugf("Fetching recognizers for language %s", language)

		start := time.Now()
		descriptors, err := appState.Engine.Recognizers(r.Context(), language)
		observeEngine("recognizers", start, err)
		if err != nil {
			renderError(w, r, err, "")
			return
		}

		body, err := renderNames(descriptors)
		if err != nil {
			renderError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// SupportedEntitiesHandler godoc
//
//	@Summary		List supported entities
//	@Description	sorted entity types the engine can detect, for one language or all of them
//	@Tags			analyze
//	@Produce		json
//	@Param			language	query		string	false	"Language code"
//	@Success		200			{array}		string
//	@Failure		500			{object}	APIError	"Internal Server Error"
//	@Security		Bearer
//	@Router			/supportedentities [get]
func SupportedEntitiesHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		language := r.URL.Query().Get("language")
		if language == "" {
			log.Debug("Fetching supported entities for all languages")
		} else {
			log.Debugf("Fetching supported entities for language %s", language)
		}

		start := time.Now()
		entities, err := appState.Engine.SupportedEntities(r.Context(), language)
		observeEngine("supported_entities", start, err)
		if err != nil {
			renderError(w, r, err, "")
			return
		}

		body, err := renderIdentifiers(entities)
		if err != nil {
			renderError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func observeEngine(operation string, start time.Time, err error) {
	metrics.ObserveEngineCall(operation, start)
	if err == nil {
		return
	}
	var engineErr *models.EngineError
	metrics.ObserveEngineFailure(operation, errors.As(err, &engineErr) && engineErr.ClientCaused)
}
