package model

// Status is the settlement status of a client.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusSettled
}

// Client is a debtor visited on a collection route.
type Client struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Owed        int64  `json:"owed"`
	Paid        int64  `json:"paid"`
	Phone       string `json:"phone,omitempty"`
	Reference   string `json:"reference,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`

	// StreetID is nil when the client is not assigned to a street.
	StreetID   *int64 `json:"street_id,omitempty"`
	VisitOrder int    `json:"visit_order"`
	Priority   bool   `json:"priority"`
	Note       string `json:"note,omitempty"`
	Status     Status `json:"status"`

	// NextChargeDate is an ISO date, empty when unset.
	NextChargeDate string `json:"next_charge_date,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Outstanding returns the amount still owed.
func (c *Client) Outstanding() int64 {
	return c.Owed - c.Paid
}

// ClientFields is the input to ledger.CreateClient.
type ClientFields struct {
	Name        string `validate:"required,max=120"`
	Owed        int64  `validate:"gte=0"`
	Paid        int64  `validate:"gte=0,ltefield=Owed"`
	Phone       string `validate:"max=30"`
	Reference   string `validate:"max=200"`
	HouseNumber string `validate:"max=20"`
	StreetID    *int64
	// VisitOrder 0 appends the client at the end of its street.
	VisitOrder     int    `validate:"gte=0"`
	Priority       bool
	Note           string `validate:"max=1000"`
	NextChargeDate string `validate:"omitempty,isodate"`
}

// ClientPatch carries the fields supplied to ledger.UpdateClient. Nil
// pointers leave the stored value untouched. The Clear flags null out
// nullable columns and take precedence over the matching pointer.
type ClientPatch struct {
	Name        *string `validate:"omitempty,min=1,max=120"`
	Owed        *int64  `validate:"omitempty,gte=0"`
	Paid        *int64  `validate:"omitempty,gte=0"`
	Phone       *string `validate:"omitempty,max=30"`
	Reference   *string `validate:"omitempty,max=200"`
	HouseNumber *string `validate:"omitempty,max=20"`
	Priority    *bool
	Note        *string `validate:"omitempty,max=1000"`

	StreetID    *int64
	ClearStreet bool

	NextChargeDate      *string `validate:"omitempty,isodate"`
	ClearNextChargeDate bool
}

// Empty reports whether the patch changes nothing.
func (p ClientPatch) Empty() bool {
	return p.Name == nil && p.Owed == nil && p.Paid == nil && p.Phone == nil &&
		p.Reference == nil && p.HouseNumber == nil && p.Priority == nil &&
		p.Note == nil && p.StreetID == nil && !p.ClearStreet &&
		p.NextChargeDate == nil && !p.ClearNextChargeDate
}

// DeriveStatus returns the status implied by the totals.
func DeriveStatus(owed, paid int64) Status {
	if owed > 0 && paid >= owed {
		return StatusSettled
	}
	return StatusPending
}

// Clamp forces paid into [0, owed]. The second result reports whether a
// correction was needed.
func Clamp(owed, paid int64) (int64, bool) {
	switch {
	case paid < 0:
		return 0, true
	case paid > owed:
		return owed, true
	default:
		return paid, false
	}
}
