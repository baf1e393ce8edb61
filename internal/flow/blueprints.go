// Package flow implements the conversation decision engine: per-turn intent
// decisions, goal state transitions and the context snapshot the decision
// model sees.
package flow

import "strings"

// Flow keys for the supported conversation blueprints.
const (
	FlowBookingMobile    = "bookingCreatingForMobileService"
	FlowBookingNonMobile = "bookingCreatingForNoneMobileService"
	FlowCustomerFAQ      = "customerFaqHandling"
)

// Blueprints maps each flow key to its ordered step names. Step order is the
// source of truth for advance and go_back transitions.
var Blueprints = map[string][]string{
	FlowBookingMobile: {
		"askAddress", "validateAddress", "selectService", "confirmLocation",
		"displayQuote", "displayQuoteInDetail", "askToBook",
		"displayNextAvailableTimes", "getDate", "displayAvailableHoursPerDay",
		"getTime", "isNewUser", "askEmail", "validateEmail",
		"createBooking", "displayConfirmedBooking", "sendEmailBookingConfirmation",
	},
	FlowBookingNonMobile: {
		"selectService", "confirmLocation",
		"displayNextAvailableTimes", "getDate", "displayAvailableHoursPerDay",
		"getTime", "isNewUser", "askEmail", "validateEmail",
		"createBooking", "displayConfirmedBooking", "sendEmailBookingConfirmation",
	},
	FlowCustomerFAQ: {
		"identifyUserQuestion", "searchKnowledgeBase", "provideAnswerToUser", "checkUserSatisfaction",
	},
}

// stepKeywordGroups maps vocabulary in a model-suggested target step to the
// canonical step of each flow. Used when the model names a step that is not
// literally in the blueprint ("selectTime", "addressEntry").
var stepKeywordGroups = []struct {
	keywords  []string
	canonical []string
}{
	{[]string{"service"}, []string{"selectService"}},
	{[]string{"time", "hour"}, []string{"getTime", "displayAvailableHoursPerDay"}},
	{[]string{"date", "day"}, []string{"getDate", "displayNextAvailableTimes"}},
	{[]string{"address", "location"}, []string{"askAddress", "confirmLocation"}},
	{[]string{"quote", "price"}, []string{"displayQuote"}},
	{[]string{"email"}, []string{"askEmail"}},
}

// StepIndex returns the index of a step within a flow, or -1.
func StepIndex(flowKey, stepName string) int {
	for i, s := range Blueprints[flowKey] {
		if s == stepName {
			return i
		}
	}
	return -1
}

// ResolveTargetStep maps a model-suggested target step to an index in the
// flow. Exact step names match directly; otherwise the step vocabulary is
// used to infer the closest blueprint step. Returns -1 when nothing matches.
func ResolveTargetStep(flowKey, targetStep string) int {
	if targetStep == "" {
		return -1
	}
	if idx := StepIndex(flowKey, targetStep); idx >= 0 {
		return idx
	}
	lower := strings.ToLower(targetStep)
	for _, group := range stepKeywordGroups {
		for _, kw := range group.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			for _, canonical := range group.canonical {
				if idx := StepIndex(flowKey, canonical); idx >= 0 {
					return idx
				}
			}
		}
	}
	return -1
}

// stepDataKeys lists the collected-data keys owned by each step. Going back
// to a step clears its data and everything gathered after it.
var stepDataKeys = map[string][]string{
	"askAddress":    {"address", "finalServiceAddress"},
	"selectService": {"selectedService", "quoteEstimate"},
	"getDate":       {"selectedDate"},
	"getTime":       {"selectedTime"},
	"askEmail":      {"email"},
}

// StepSatisfied reports whether the step collects data and every one of its
// keys already holds a value. Steps that collect nothing are never satisfied.
func StepSatisfied(stepName string, data map[string]string) bool {
	keys := stepDataKeys[stepName]
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if data[key] == "" {
			return false
		}
	}
	return true
}

// ClearDataFrom removes collected data owned by the target step and by every
// later step of the flow.
func ClearDataFrom(flowKey string, targetIndex int, data map[string]string) {
	steps := Blueprints[flowKey]
	for i := targetIndex; i < len(steps); i++ {
		for _, key := range stepDataKeys[steps[i]] {
			delete(data, key)
		}
	}
}
