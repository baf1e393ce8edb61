// Package rag implements structured-first knowledge retrieval for customer
// questions. Structured business records are rendered to canonical text,
// embedded and scored against the query; the pre-ingested document corpus is
// only consulted when no structured record answers.
package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bookline/bookline/internal/models"
)

var weekdayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var weekdayNames = map[string]string{
	"mon": "Monday", "tue": "Tuesday", "wed": "Wednesday", "thu": "Thursday",
	"fri": "Friday", "sat": "Saturday", "sun": "Sunday",
}

// renderBusinessContent converts a business profile into one canonical
// paragraph covering contact, location and payment details.
func renderBusinessContent(b *models.Business) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Business: %s.", b.Name))

	var contact []string
	if b.Phone != "" {
		contact = append(contact, "Phone: "+b.Phone)
	}
	if b.Email != "" {
		contact = append(contact, "Email: "+b.Email)
	}
	if b.WhatsAppNumber != "" {
		contact = append(contact, "WhatsApp: "+b.WhatsAppNumber)
	}
	if len(contact) > 0 {
		parts = append(parts, "Contact: "+strings.Join(contact, ", ")+".")
	}

	if b.Address != "" {
		parts = append(parts, "Address: "+b.Address+".")
	} else {
		parts = append(parts, "Address: Location details available upon booking.")
	}
	if b.WebsiteURL != "" {
		parts = append(parts, "Website: "+b.WebsiteURL+".")
	}
	if b.TimeZone != "" {
		parts = append(parts, "Timezone: "+b.TimeZone+".")
	}

	switch {
	case b.DepositType == "percentage" && b.DepositPercentage > 0:
		parts = append(parts, fmt.Sprintf("%g%% deposit required.", b.DepositPercentage))
	case b.DepositType == "fixed" && b.DepositFixedAmount > 0:
		parts = append(parts, fmt.Sprintf("$%g deposit required.", b.DepositFixedAmount))
	default:
		parts = append(parts, "No deposit required.")
	}
	if b.PreferredPayment != "" {
		parts = append(parts, "Preferred payment: "+b.PreferredPayment+".")
	}

	return strings.Join(parts, " ")
}

// renderServiceContent converts one service into a canonical paragraph with
// description, duration, pricing and mobility.
func renderServiceContent(svc *models.Service) string {
	description := svc.Description
	if description == "" {
		description = fmt.Sprintf("Professional %s service.", svc.Name)
	}

	var pricing string
	switch {
	case svc.PricingType == models.PricingTypeFixed:
		pricing = fmt.Sprintf("Fixed price: $%g.", svc.FixedPrice)
	case svc.PricingType == models.PricingTypePerMinute:
		components := []string{fmt.Sprintf("$%g per minute", svc.RatePerMinute)}
		if svc.BaseCharge > 0 {
			components = append(components, fmt.Sprintf("base charge of $%g", svc.BaseCharge))
		}
		if svc.IncludedMinutes > 0 {
			components = append(components, fmt.Sprintf("first %d minutes included", svc.IncludedMinutes))
		}
		pricing = "Pricing: " + strings.Join(components, ", ") + "."
	default:
		pricing = "Pricing available on request."
	}

	mobility := "In-location service only (not mobile)."
	if svc.Mobile {
		mobility = "Available for mobile/house calls."
	}

	return strings.Join([]string{
		fmt.Sprintf("Service: %s.", svc.Name),
		description,
		fmt.Sprintf("Duration: %d minutes estimated.", svc.DurationEstimate),
		pricing,
		mobility,
	}, " ")
}

// renderCalendarContent converts calendar settings into a schedule paragraph
// listing operating hours and closed days.
func renderCalendarContent(cs *models.CalendarSettings, businessName string) string {
	var open []string
	var closed []string
	for _, day := range weekdayOrder {
		if hours, ok := cs.WorkingHours[day]; ok {
			open = append(open, fmt.Sprintf("%s: %s - %s", weekdayNames[day], hours.Start, hours.End))
		} else {
			closed = append(closed, weekdayNames[day])
		}
	}

	parts := []string{fmt.Sprintf("%s Complete Schedule Information:", businessName)}
	if len(open) > 0 {
		parts = append(parts, "Operating Hours: "+strings.Join(open, ", ")+".")
	}
	if len(closed) > 0 {
		parts = append(parts, "Closed: "+strings.Join(closed, ", ")+".")
	} else if len(open) > 0 {
		parts = append(parts, "Open every day of the week.")
	}
	if cs.Timezone != "" {
		parts = append(parts, "Business Timezone: "+cs.Timezone+".")
	}
	if cs.BufferTime > 0 {
		parts = append(parts, fmt.Sprintf("Buffer time between appointments: %d minutes.", cs.BufferTime))
	} else {
		parts = append(parts, "Back-to-back appointments allowed.")
	}
	return strings.Join(parts, " ")
}

// renderSlotsContent converts real-time availability into a paragraph of
// bookable appointment times, capped per day to keep the passage readable.
func renderSlotsContent(days []models.AvailabilityDay, businessName string) string {
	if len(days) == 0 {
		return fmt.Sprintf("%s currently has no available appointment slots.", businessName)
	}

	const maxSlotsPerDay = 6
	total := 0
	var lines []string
	for _, day := range days {
		if len(day.Slots) == 0 {
			continue
		}
		total += len(day.Slots)
		slots := append([]string(nil), day.Slots...)
		sort.Strings(slots)
		shown := slots
		more := ""
		if len(slots) > maxSlotsPerDay {
			shown = slots[:maxSlotsPerDay]
			more = fmt.Sprintf(" and %d more slots", len(slots)-maxSlotsPerDay)
		}
		lines = append(lines, fmt.Sprintf("%s: %s%s", day.Date, strings.Join(shown, ", "), more))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("%s currently has no available appointment slots.", businessName)
	}

	return fmt.Sprintf("%s Current Availability: %s. Total available appointment slots: %d. These are the actual times customers can book right now.",
		businessName, strings.Join(lines, ". "), total)
}
