package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bookline/bookline/internal/genai"
	"github.com/bookline/bookline/internal/util"
)

// Classifier configuration constants
const (
	// ClassifierTemperature keeps classification output deterministic.
	ClassifierTemperature = 0.1
	// ClassifierMaxTokens bounds the JSON classification response.
	ClassifierMaxTokens = 100
	// ClassificationCacheTTL is how long a cached classification stays valid.
	ClassificationCacheTTL = 5 * time.Minute
	// ClassificationCacheSize caps the number of cached classifications.
	ClassificationCacheSize = 512
)

// Classification reports which structured data facets a customer query needs.
// All false means the query is not a business data question.
type Classification struct {
	Availability bool `json:"availability"`
	Business     bool `json:"business"`
	Service      bool `json:"service"`
}

// IsBusinessQuery reports whether any structured facet applies.
func (c Classification) IsBusinessQuery() bool {
	return c.Availability || c.Business || c.Service
}

const classifierSystemPrompt = `You are a smart query classifier for a booking system. Determine what type of information the user needs:

AVAILABILITY: When user asks about scheduling, dates, times, when something is available, booking appointments
BUSINESS: When user asks ONLY about direct contact info (phone, email, address) or payment setup (deposits, payment methods)
SERVICE: When user asks about what specific services are offered, individual service prices, what the business does

Examples:
- "When are you available?" -> AVAILABILITY: true, BUSINESS: false, SERVICE: false
- "Para cuando tendrias cita?" -> AVAILABILITY: true, BUSINESS: false, SERVICE: false
- "What's your phone number?" -> AVAILABILITY: false, BUSINESS: true, SERVICE: false
- "What's your address?" -> AVAILABILITY: false, BUSINESS: true, SERVICE: false
- "Is there any deposit?" -> AVAILABILITY: false, BUSINESS: true, SERVICE: false
- "What payment methods do you accept?" -> AVAILABILITY: false, BUSINESS: true, SERVICE: false
- "How much for a haircut?" -> AVAILABILITY: false, BUSINESS: false, SERVICE: true
- "What services do you offer?" -> AVAILABILITY: false, BUSINESS: false, SERVICE: true
- "What is your cancellation policy?" -> AVAILABILITY: false, BUSINESS: false, SERVICE: false
- "Hello" -> AVAILABILITY: false, BUSINESS: false, SERVICE: false

Respond with ONLY JSON: {"availability": true/false, "business": true/false, "service": true/false}`

// Keyword fallback lists used when the classification model is unavailable.
// English plus the Spanish terms customers actually write.
var (
	availabilityKeywords = []string{"available", "appointment", "book", "when", "cita", "fecha", "hora"}
	businessKeywords     = []string{"phone number", "email", "address", "contact info", "deposit", "payment method", "teléfono", "dirección", "depósito", "método de pago"}
	serviceKeywords      = []string{"service", "price", "cost", "offer", "do you do", "servicio", "precio", "costo"}
)

// Classifier determines which structured facets a query needs, with a TTL
// cache to avoid redundant model calls for repeated queries.
type Classifier struct {
	genAI genai.ClientInterface
	cache *expirable.LRU[string, Classification]
}

// NewClassifier creates a query classifier backed by the given GenAI client.
func NewClassifier(genAI genai.ClientInterface) *Classifier {
	return &Classifier{
		genAI: genAI,
		cache: expirable.NewLRU[string, Classification](ClassificationCacheSize, nil, ClassificationCacheTTL),
	}
}

// Classify returns the facet classification for a customer query. Model
// failures fall back to keyword heuristics and are never surfaced.
func (c *Classifier) Classify(ctx context.Context, query string) Classification {
	cacheKey := strings.ToLower(strings.TrimSpace(query))
	if cached, ok := c.cache.Get(cacheKey); ok {
		slog.Debug("Classifier.Classify: cache hit", "query", truncate(query, 30))
		return cached
	}

	userPrompt := fmt.Sprintf("Classify this query: %q", query)
	response, err := c.genAI.Generate(ctx, classifierSystemPrompt, userPrompt, ClassifierTemperature, ClassifierMaxTokens)
	if err != nil {
		slog.Warn("Classifier.Classify: model call failed, using keyword fallback", "error", err)
		return keywordClassification(query)
	}

	var result Classification
	if err := json.Unmarshal([]byte(util.StripCodeFences(response)), &result); err != nil {
		slog.Warn("Classifier.Classify: unparseable model output, using keyword fallback", "error", err, "response", truncate(response, 100))
		return keywordClassification(query)
	}

	c.cache.Add(cacheKey, result)
	slog.Debug("Classifier.Classify: classified query", "query", truncate(query, 50),
		"availability", result.Availability, "business", result.Business, "service", result.Service)
	return result
}

// keywordClassification is the heuristic fallback when the model is down.
func keywordClassification(query string) Classification {
	lower := strings.ToLower(query)
	contains := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	return Classification{
		Availability: contains(availabilityKeywords),
		Business:     contains(businessKeywords),
		Service:      contains(serviceKeywords),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
