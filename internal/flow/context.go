package flow

import (
	"context"
	"log/slog"

	"github.com/bookline/bookline/internal/models"
	"github.com/bookline/bookline/internal/store"
)

// Aggregator assembles the read-only context snapshot handed to the decision
// engine and response generation each turn. Construction never fails; any
// field that cannot be resolved is logged and left empty.
type Aggregator struct {
	data store.DataStore
}

// NewAggregator creates a context aggregator over the given data store.
func NewAggregator(data store.DataStore) *Aggregator {
	return &Aggregator{data: data}
}

// Build assembles the per-turn context snapshot. The single external lookup
// is the business record; its failure degrades to an unnamed business.
func (a *Aggregator) Build(ctx context.Context, goal *models.Goal, businessID, customerPhone, customerName string) models.ComprehensiveContext {
	snapshot := models.ComprehensiveContext{
		Customer: models.CustomerInfo{
			Name:        customerName,
			PhoneNumber: customerPhone,
		},
		Business:    models.BusinessInfo{ID: businessID},
		Preferences: map[string]string{},
	}

	if businessID != "" && a.data != nil {
		business, err := a.data.GetBusiness(ctx, businessID)
		if err != nil {
			slog.Warn("Aggregator.Build: business lookup failed, continuing without name", "error", err, "businessID", businessID)
		} else if business != nil {
			snapshot.Business.Name = business.Name
			snapshot.Business.WhatsAppNumber = business.WhatsAppNumber
		}
	}

	if goal != nil {
		snapshot.MessageHistory = goal.MessageHistory
		steps := Blueprints[goal.FlowKey]
		step := ""
		if goal.CurrentStepIndex >= 0 && goal.CurrentStepIndex < len(steps) {
			step = steps[goal.CurrentStepIndex]
		}
		snapshot.CurrentBooking = models.BookingSnapshot{
			Step:    step,
			Service: goal.CollectedData["selectedService"],
			Date:    goal.CollectedData["selectedDate"],
			Time:    goal.CollectedData["selectedTime"],
			Address: goal.CollectedData["finalServiceAddress"],
			Price:   goal.CollectedData["quoteEstimate"],
		}
	}

	return snapshot
}
