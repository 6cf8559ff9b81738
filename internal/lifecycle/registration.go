// Package lifecycle classifies registration and inbox timestamps into the
// windows the registry contract enforces. All functions take "now" from the
// caller, normally the latest block timestamp.
package lifecycle

import "time"

const (
	Day = 24 * time.Hour

	GracePeriod      = 300 * Day
	PremiumPeriod    = 65 * Day
	GracePlusPremium = GracePeriod + PremiumPeriod

	// TransferPenalty is taken off the expiry on every transfer or shelve.
	TransferPenalty = 7 * Day
)

type RegistrationState string

const (
	Active    RegistrationState = "active"
	Grace     RegistrationState = "grace"
	Premium   RegistrationState = "premium"
	Available RegistrationState = "available"
)

// FromChain converts a uint64 contract timestamp. 0 means "never set" and
// maps to the zero time.
func FromChain(ts uint64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

// Registration classifies a name with the given expiry at now.
func Registration(expiry, now time.Time) RegistrationState {
	switch {
	case now.Before(expiry):
		return Active
	case now.Before(expiry.Add(GracePeriod)):
		return Grace
	case now.Before(expiry.Add(GracePlusPremium)):
		return Premium
	default:
		return Available
	}
}

func GraceEnd(expiry time.Time) time.Time {
	return expiry.Add(GracePeriod)
}

func PremiumEnd(expiry time.Time) time.Time {
	return expiry.Add(GracePlusPremium)
}

// ApplyTransferPenalty returns the expiry after one transfer or shelve.
func ApplyTransferPenalty(expiry time.Time) time.Time {
	return expiry.Add(-TransferPenalty)
}

type AvailabilityStatus string

const (
	StatusAvailable AvailabilityStatus = "available"
	StatusTaken     AvailabilityStatus = "taken"
	StatusGrace     AvailabilityStatus = "grace"
	StatusPremium   AvailabilityStatus = "premium"
)

// AvailabilityResult is what a registration form shows for a name.
type AvailabilityResult struct {
	Status AvailabilityStatus `json:"status"`
	// New is set when the name was never registered.
	New       bool       `json:"new,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Availability maps a registration expiry to what a registrant can do.
// A zero expiry means the name was never minted.
func Availability(expiry, now time.Time) AvailabilityResult {
	if expiry.IsZero() {
		return AvailabilityResult{Status: StatusAvailable, New: true}
	}

	exp := expiry
	switch Registration(expiry, now) {
	case Active:
		return AvailabilityResult{Status: StatusTaken, ExpiresAt: &exp}
	case Grace:
		return AvailabilityResult{
			Status:    StatusGrace,
			ExpiresAt: &exp,
			Message:   "in grace period, only the previous owner can renew",
		}
	case Premium:
		return AvailabilityResult{
			Status:    StatusPremium,
			ExpiresAt: &exp,
			Message:   "premium period, registration carries a decaying surcharge",
		}
	default:
		return AvailabilityResult{Status: StatusAvailable, Message: "available for registration"}
	}
}
