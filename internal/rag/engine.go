package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// Score boosts applied to structured data so it outranks the document corpus.
// Multiplicative over the raw cosine score; never renormalized.
const (
	BusinessBoost = 3.0
	ServiceBoost  = 2.5
	CalendarBoost = 3.5
	SlotsBoost    = 4.0
)

// Retrieval configuration constants
const (
	// AvailabilityWindowDays is how far ahead real-time slots are fetched.
	AvailabilityWindowDays = 14
	// DocumentFallbackLimit caps document-corpus results.
	DocumentFallbackLimit = 3
)

// Engine answers customer questions from structured business records first,
// falling back to the pre-ingested document corpus only when no structured
// record applies.
type Engine struct {
	genAI      genai.ClientInterface
	data       store.DataStore
	classifier *Classifier
	now        func() time.Time
}

// NewEngine creates a retrieval engine over the given data store.
func NewEngine(genAI genai.ClientInterface, data store.DataStore) *Engine {
	return &Engine{
		genAI:      genAI,
		data:       data,
		classifier: NewClassifier(genAI),
		now:        time.Now,
	}
}

// Answer retrieves the passages most relevant to a customer query. Structured
// results, when any exist, are returned exclusively and sorted by boosted
// score; otherwise the document corpus supplies up to DocumentFallbackLimit
// nearest neighbors. Per-record fetch or embed errors are logged and skipped.
func (e *Engine) Answer(ctx context.Context, businessID, query string) ([]models.VectorSearchResult, error) {
	intent := e.classifier.Classify(ctx, query)
	slog.Debug("Engine.Answer: classified query", "businessID", businessID,
		"availability", intent.Availability, "business", intent.Business, "service", intent.Service)

	queryEmbedding, err := e.genAI.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var results []models.VectorSearchResult
	if intent.IsBusinessQuery() {
		if intent.Business {
			results = append(results, e.businessResults(ctx, businessID, queryEmbedding)...)
		}
		if intent.Service {
			results = append(results, e.serviceResults(ctx, businessID, queryEmbedding)...)
		}
		if intent.Availability {
			results = append(results, e.availabilityResults(ctx, businessID, queryEmbedding)...)
		}
	}

	if len(results) > 0 {
		sort.Slice(results, func(i, j int) bool {
			return results[i].SimilarityScore > results[j].SimilarityScore
		})
		slog.Debug("Engine.Answer: returning structured results", "businessID", businessID, "count", len(results))
		return results, nil
	}

	docs, err := e.documentResults(ctx, businessID, queryEmbedding)
	if err != nil {
		return nil, err
	}
	slog.Debug("Engine.Answer: returning document fallback results", "businessID", businessID, "count", len(docs))
	return docs, nil
}

func (e *Engine) businessResults(ctx context.Context, businessID string, queryEmbedding []float64) []models.VectorSearchResult {
	business, err := e.data.GetBusiness(ctx, businessID)
	if err != nil || business == nil {
		if err != nil {
			slog.Error("Engine.businessResults: failed to fetch business", "error", err, "businessID", businessID)
		}
		return nil
	}
	content := renderBusinessContent(business)
	score, ok := e.scoreContent(ctx, content, queryEmbedding)
	if !ok {
		return nil
	}
	return []models.VectorSearchResult{{
		DocumentID:      business.ID,
		Content:         content,
		SimilarityScore: score * BusinessBoost,
		Type:            models.ResultTypeBusiness,
		Source:          "Business Information",
		Category:        "Business",
		ConfidenceScore: 1.0,
	}}
}

func (e *Engine) serviceResults(ctx context.Context, businessID string, queryEmbedding []float64) []models.VectorSearchResult {
	services, err := e.data.GetServices(ctx, businessID)
	if err != nil {
		slog.Error("Engine.serviceResults: failed to fetch services", "error", err, "businessID", businessID)
		return nil
	}
	var out []models.VectorSearchResult
	for i := range services {
		svc := services[i]
		content := renderServiceContent(&svc)
		score, ok := e.scoreContent(ctx, content, queryEmbedding)
		if !ok {
			continue
		}
		out = append(out, models.VectorSearchResult{
			DocumentID:      svc.ID,
			Content:         content,
			SimilarityScore: score * ServiceBoost,
			Type:            models.ResultTypeService,
			Source:          "Business Service",
			Category:        "Services",
			ConfidenceScore: 1.0,
		})
	}
	return out
}

func (e *Engine) availabilityResults(ctx context.Context, businessID string, queryEmbedding []float64) []models.VectorSearchResult {
	businessName := businessID
	if business, err := e.data.GetBusiness(ctx, businessID); err == nil && business != nil {
		businessName = business.Name
	}

	var out []models.VectorSearchResult

	settings, err := e.data.GetCalendarSettings(ctx, businessID)
	if err != nil {
		slog.Error("Engine.availabilityResults: failed to fetch calendar settings", "error", err, "businessID", businessID)
	} else if settings != nil {
		content := renderCalendarContent(settings, businessName)
		if score, ok := e.scoreContent(ctx, content, queryEmbedding); ok {
			out = append(out, models.VectorSearchResult{
				DocumentID:      businessID + "-calendar",
				Content:         content,
				SimilarityScore: score * CalendarBoost,
				Type:            models.ResultTypeAvailability,
				Source:          "Working Hours & Availability",
				Category:        "Availability",
				ConfidenceScore: 1.0,
			})
		}
	}

	today := e.now()
	from := today.Format("2006-01-02")
	to := today.AddDate(0, 0, AvailabilityWindowDays).Format("2006-01-02")
	days, err := e.data.GetAvailability(ctx, businessID, from, to)
	if err != nil {
		slog.Error("Engine.availabilityResults: failed to fetch availability", "error", err, "businessID", businessID)
	} else if len(days) > 0 {
		content := renderSlotsContent(days, businessName)
		if score, ok := e.scoreContent(ctx, content, queryEmbedding); ok {
			out = append(out, models.VectorSearchResult{
				DocumentID:      businessID + "-slots",
				Content:         content,
				SimilarityScore: score * SlotsBoost,
				Type:            models.ResultTypeAvailability,
				Source:          "Real-time Availability",
				Category:        "Availability",
				ConfidenceScore: 1.0,
			})
		}
	}

	return out
}

func (e *Engine) documentResults(ctx context.Context, businessID string, queryEmbedding []float64) ([]models.VectorSearchResult, error) {
	docs, err := e.data.ListDocuments(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	var out []models.VectorSearchResult
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}
		out = append(out, models.VectorSearchResult{
			DocumentID:      doc.ID,
			Content:         doc.Content,
			SimilarityScore: CosineSimilarity(queryEmbedding, doc.Embedding),
			Type:            models.ResultTypeDocument,
			Source:          doc.Source,
			Category:        doc.Category,
			ConfidenceScore: 0.8,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SimilarityScore > out[j].SimilarityScore
	})
	if len(out) > DocumentFallbackLimit {
		out = out[:DocumentFallbackLimit]
	}
	return out, nil
}

// scoreContent embeds rendered content and returns its cosine similarity to
// the query. Embed failures are logged and the record skipped.
func (e *Engine) scoreContent(ctx context.Context, content string, queryEmbedding []float64) (float64, bool) {
	embedding, err := e.genAI.Embed(ctx, content)
	if err != nil {
		slog.Error("Engine.scoreContent: failed to embed content", "error", err)
		return 0, false
	}
	return CosineSimilarity(queryEmbedding, embedding), true
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or zero magnitude score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
