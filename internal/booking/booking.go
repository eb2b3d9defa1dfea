// Package booking implements the service booking pipeline: the step
// wizard, server-side pricing, reference generation, persistence and the
// back-office status workflow.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("booking: not found")
	ErrDuplicateReference = errors.New("booking: duplicate reference")
	// ErrStatusConflict means the stored status changed under the caller.
	ErrStatusConflict = errors.New("booking: status changed concurrently")
)

// Dubai is Gulf Standard Time. The UAE does not observe daylight saving.
var Dubai = time.FixedZone("GST", 4*60*60)

// Booking is a persisted service request.
type Booking struct {
	ID               int64           `json:"-"`
	Reference        string          `json:"reference"`
	ServiceID        int64           `json:"service_id"`
	ServiceName      string          `json:"service_name"`
	ScheduledDate    time.Time       `json:"scheduled_date"`
	TimeSlot         string          `json:"time_slot"`
	Hours            decimal.Decimal `json:"hours"`
	Urgency          Urgency         `json:"urgency"`
	Emirate          Emirate         `json:"emirate"`
	Area             string          `json:"area"`
	PropertyType     PropertyType    `json:"property_type"`
	Address          string          `json:"address"`
	IssueDescription string          `json:"issue_description"`
	Photos           []string        `json:"photos,omitempty"`
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email"`
	ClientPhone      string          `json:"client_phone"`
	ContactMethod    ContactMethod   `json:"contact_method"`
	Quote            Quote           `json:"quote"`
	Status           Status          `json:"status"`
	ClientIP         string          `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Store persists bookings.
type Store interface {
	// Create inserts b and sets its ID. A reference collision returns
	// ErrDuplicateReference and leaves nothing behind.
	Create(ctx context.Context, b *Booking) error
	FindByReference(ctx context.Context, reference string) (*Booking, error)
	ListRecent(ctx context.Context, limit int) ([]*Booking, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// UpdateStatus moves reference from -> to, or returns ErrStatusConflict
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, reference string, from, to Status, at time.Time) error
}
