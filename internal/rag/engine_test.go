package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// fakeGenAI returns a fixed classification and per-text embeddings. Texts
// without an entry embed to a unit vector, so structural boosts decide the
// ranking.
type fakeGenAI struct {
	classification string
	generateErr    error
	embedErr       error
	embeddings     map[string][]float64
}

func (f *fakeGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.classification, nil
}

func (f *fakeGenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if v, ok := f.embeddings[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func seedStore() *store.InMemoryStore {
	st := store.NewInMemoryStore()
	st.SeedBusiness(models.Business{
		ID:      "biz1",
		Name:    "Glow Salon",
		Phone:   "+15550001111",
		Address: "123 Main St",
	})
	st.SeedServices("biz1", []models.Service{
		{ID: "svc1", BusinessID: "biz1", Name: "Haircut", DurationEstimate: 45, PricingType: models.PricingTypeFixed, FixedPrice: 40},
	})
	st.SeedCalendarSettings("biz1", models.CalendarSettings{
		BusinessID:   "biz1",
		WorkingHours: models.WorkingHours{"mon": {Start: "09:00", End: "17:00"}},
	})
	st.SeedAvailability("biz1", []models.AvailabilityDay{
		{Date: time.Now().AddDate(0, 0, 1).Format("2006-01-02"), Slots: []string{"10:00", "11:00"}},
	})
	return st
}

func TestAnswerAvailabilityBoostOrdering(t *testing.T) {
	st := seedStore()
	engine := NewEngine(&fakeGenAI{classification: `{"availability":true,"business":false,"service":false}`}, st)

	results, err := engine.Answer(context.Background(), "biz1", "when are you available?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected calendar and slots results, got %d", len(results))
	}
	// Identical embeddings mean the boosts decide the order: real-time
	// slots (4.0) outrank working hours (3.5).
	if results[0].Source != "Real-time Availability" {
		t.Errorf("expected real-time slots first, got %q", results[0].Source)
	}
	if results[1].Source != "Working Hours & Availability" {
		t.Errorf("expected working hours second, got %q", results[1].Source)
	}
	for _, r := range results {
		if r.Type != models.ResultTypeAvailability {
			t.Errorf("expected availability results only, got %s", r.Type)
		}
		if r.ConfidenceScore != 1.0 {
			t.Errorf("structured result confidence = %f, want 1.0", r.ConfidenceScore)
		}
	}
}

func TestAnswerStructuredExcludesDocuments(t *testing.T) {
	st := seedStore()
	st.SeedDocuments("biz1", []models.Document{
		{ID: "doc1", BusinessID: "biz1", Content: "Cancellation policy text", Embedding: []float64{1, 0, 0}},
	})
	engine := NewEngine(&fakeGenAI{classification: `{"availability":false,"business":true,"service":false}`}, st)

	results, err := engine.Answer(context.Background(), "biz1", "what's your address?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected structured results")
	}
	for _, r := range results {
		if r.Type == models.ResultTypeDocument {
			t.Error("document result returned alongside structured data")
		}
	}
}

func TestAnswerDocumentFallbackTopThree(t *testing.T) {
	st := seedStore()
	st.SeedDocuments("biz1", []models.Document{
		{ID: "doc1", BusinessID: "biz1", Content: "A", Embedding: []float64{1, 0, 0}},
		{ID: "doc2", BusinessID: "biz1", Content: "B", Embedding: []float64{0.9, 0.1, 0}},
		{ID: "doc3", BusinessID: "biz1", Content: "C", Embedding: []float64{0.5, 0.5, 0}},
		{ID: "doc4", BusinessID: "biz1", Content: "D", Embedding: []float64{0, 1, 0}},
	})
	engine := NewEngine(&fakeGenAI{classification: `{"availability":false,"business":false,"service":false}`}, st)

	results, err := engine.Answer(context.Background(), "biz1", "what is your cancellation policy?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 document results, got %d", len(results))
	}
	if results[0].DocumentID != "doc1" {
		t.Errorf("expected doc1 first, got %s", results[0].DocumentID)
	}
	for _, r := range results {
		if r.Type != models.ResultTypeDocument {
			t.Errorf("expected document results, got %s", r.Type)
		}
		if r.ConfidenceScore != 0.8 {
			t.Errorf("document result confidence = %f, want 0.8", r.ConfidenceScore)
		}
	}
}

func TestAnswerAddressScenario(t *testing.T) {
	st := seedStore()
	engine := NewEngine(&fakeGenAI{classification: `{"availability":false,"business":true,"service":false}`}, st)

	results, err := engine.Answer(context.Background(), "biz1", "what's your address?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a business result")
	}
	found := false
	for _, r := range results {
		if r.Type == models.ResultTypeBusiness && strings.Contains(r.Content, "123 Main St") {
			found = true
		}
	}
	if !found {
		t.Error("expected business result containing the street address")
	}
}

func TestClassifierKeywordFallback(t *testing.T) {
	classifier := NewClassifier(&fakeGenAI{generateErr: errors.New("model down")})
	cases := []struct {
		query string
		want  Classification
	}{
		{"when are you available?", Classification{Availability: true}},
		{"what is your phone number?", Classification{Business: true}},
		{"how much does the service cost?", Classification{Service: true}},
		{"para cuando tendrias cita?", Classification{Availability: true}},
		{"hi there", Classification{}},
	}
	for _, tc := range cases {
		got := classifier.Classify(context.Background(), tc.query)
		if got != tc.want {
			t.Errorf("query %q: expected %+v, got %+v", tc.query, tc.want, got)
		}
	}
}

func TestClassifierCachesResults(t *testing.T) {
	fake := &fakeGenAI{classification: `{"availability":true,"business":false,"service":false}`}
	classifier := NewClassifier(fake)

	first := classifier.Classify(context.Background(), "When are you open?")
	// Break the model; the cached entry keyed on the normalized query must
	// still answer.
	fake.generateErr = errors.New("model down")
	second := classifier.Classify(context.Background(), "  when are you open?  ")
	if first != second {
		t.Errorf("expected cache hit to return %+v, got %+v", first, second)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: expected 1, got %f", got)
	}
	if got := CosineSimilarity([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: expected 0, got %f", got)
	}
	if got := CosineSimilarity([]float64{1, 0}, []float64{1}); got != 0 {
		t.Errorf("mismatched lengths: expected 0, got %f", got)
	}
	if got := CosineSimilarity([]float64{0, 0}, []float64{1, 0}); got != 0 {
		t.Errorf("zero magnitude: expected 0, got %f", got)
	}
}
