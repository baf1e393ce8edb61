package models

import "time"

// Business is the structured business profile record, read from the data store.
type Business struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone,omitempty"`
	Email              string    `json:"email,omitempty"`
	WhatsAppNumber     string    `json:"whatsappNumber,omitempty"`
	WhatsAppChannelID  string    `json:"whatsappChannelId,omitempty"`
	Address            string    `json:"businessAddress,omitempty"`
	WebsiteURL         string    `json:"websiteUrl,omitempty"`
	TimeZone           string    `json:"timeZone,omitempty"`
	DepositType        string    `json:"depositType,omitempty"` // "percentage" or "fixed"
	DepositPercentage  float64   `json:"depositPercentage,omitempty"`
	DepositFixedAmount float64   `json:"depositFixedAmount,omitempty"`
	PreferredPayment   string    `json:"preferredPaymentMethod,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitempty"`
}

// PricingType distinguishes fixed-price from per-minute services.
type PricingType string

const (
	PricingTypeFixed     PricingType = "fixed"
	PricingTypePerMinute PricingType = "per_minute"
)

// Service is one entry of the business service catalog.
type Service struct {
	ID               string      `json:"id"`
	BusinessID       string      `json:"businessId"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	DurationEstimate int         `json:"durationEstimate"` // minutes
	PricingType      PricingType `json:"pricingType"`
	FixedPrice       float64     `json:"fixedPrice,omitempty"`
	RatePerMinute    float64     `json:"ratePerMinute,omitempty"`
	BaseCharge       float64     `json:"baseCharge,omitempty"`
	IncludedMinutes  int         `json:"includedMinutes,omitempty"`
	Mobile           bool        `json:"mobile"`
}

// WorkingHours holds the daily open/close times, keyed by lowercase
// three-letter day ("mon".."sun"). A missing day means closed.
type WorkingHours map[string]DayHours

// DayHours is one day's opening window in "HH:MM" local time.
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CalendarSettings holds the business schedule configuration.
type CalendarSettings struct {
	BusinessID   string       `json:"businessId"`
	WorkingHours WorkingHours `json:"workingHours"`
	Timezone     string       `json:"timezone,omitempty"`
	BufferTime   int          `json:"bufferTime,omitempty"` // minutes between appointments
}

// AvailabilityDay is one day's open appointment slots, as provided by the
// external availability service.
type AvailabilityDay struct {
	Date  string   `json:"date"` // "2006-01-02"
	Slots []string `json:"slots"`
}

// StaffMember is one entry of the business staff roster.
type StaffMember struct {
	ID               string `json:"id"`
	BusinessID       string `json:"businessId"`
	Name             string `json:"name,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role"`
	PreferredChannel string `json:"preferredChannel,omitempty"`
}

// Staff roles used for notification fan-out and admin detection.
const (
	RoleAdmin      = "admin"
	RoleProvider   = "provider"
	RoleSuperAdmin = "super_admin"
)

// IsProviderRole reports whether the role receives business notifications
// and counts as an admin for proxy-session routing.
func IsProviderRole(role string) bool {
	return role == RoleAdmin || role == RoleProvider
}

// Document is one pre-ingested passage of the external document corpus.
type Document struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"businessId"`
	Content    string    `json:"content"`
	Category   string    `json:"category,omitempty"`
	Source     string    `json:"source,omitempty"`
	Embedding  []float64 `json:"-"`
}
