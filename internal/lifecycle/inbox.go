package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

const (
	// AnyonePeriod follows the owner window; anyone may accept on the
	// receiver's behalf.
	AnyonePeriod = 7 * Day

	BasePendingPeriod = 42 * Day
	MinPendingPeriod  = 7 * Day
	MaxInbox          = 255
)

var ErrInboxFull = errors.New("inbox full")

type InboxState string

const (
	OwnerClaimable InboxState = "owner_claimable"
	OpenClaimable  InboxState = "open_claimable"
	Burnable       InboxState = "burnable"
)

// Inbox classifies an inbox item with the given claim deadline at now.
func Inbox(inboxExpiry, now time.Time) InboxState {
	switch {
	case now.Before(inboxExpiry):
		return OwnerClaimable
	case now.Before(inboxExpiry.Add(AnyonePeriod)):
		return OpenClaimable
	default:
		return Burnable
	}
}

// PendingPeriod is the claim window for an item landing in an inbox that
// already holds k items. It decays linearly from 42 days at k=0 to 7 days at
// k=MaxInbox, in whole seconds with the contract's integer division.
func PendingPeriod(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	if k > MaxInbox {
		k = MaxInbox
	}
	base := int64(BasePendingPeriod / time.Second)
	span := int64((BasePendingPeriod - MinPendingPeriod) / time.Second)
	secs := base - int64(k)*span/MaxInbox
	return time.Duration(secs) * time.Second
}

// InboxExpiry predicts the claim deadline the contract will assign when an
// item is placed into an inbox currently holding count items.
func InboxExpiry(now time.Time, count int) (time.Time, error) {
	if count >= MaxInbox {
		return time.Time{}, fmt.Errorf("%w: %d items", ErrInboxFull, count)
	}
	return now.Add(PendingPeriod(count)), nil
}

// Deadlines of one inbox item.
type Deadlines struct {
	// OwnerDeadline ends the receiver-only window.
	OwnerDeadline time.Time `json:"owner_deadline"`
	// BurnDate is when third parties may burn the item.
	BurnDate time.Time `json:"burn_date"`
}

func InboxDeadlines(inboxExpiry time.Time) Deadlines {
	return Deadlines{
		OwnerDeadline: inboxExpiry,
		BurnDate:      inboxExpiry.Add(AnyonePeriod),
	}
}

// CanAccept reports whether acceptInbox would pass. The receiver must not
// hold a primary name; before the deadline only the receiver may accept,
// during the open window anyone may.
func CanAccept(isReceiver, receiverHasPrimary bool, state InboxState) bool {
	if receiverHasPrimary {
		return false
	}
	switch state {
	case OwnerClaimable:
		return isReceiver
	case OpenClaimable:
		return true
	default:
		return false
	}
}

// CanReject reports whether the caller may reject the item for a refund.
// The receiver can do so at any point until the item is burned.
func CanReject(isReceiver bool) bool {
	return isReceiver
}

// CanBurn reports whether a third party may burn the item for a reward.
func CanBurn(state InboxState) bool {
	return state == Burnable
}

// SplitDaysHours breaks a window into whole days and remaining hours.
func SplitDaysHours(d time.Duration) (int, int) {
	days := int(d / Day)
	hours := int((d % Day) / time.Hour)
	return days, hours
}
