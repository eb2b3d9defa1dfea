package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ffb.ae/internal/store/pg"
)

var _ Store = (*PGStore)(nil)

// ReferenceConstraint is the unique constraint on bookings.reference.
const ReferenceConstraint = "bookings_reference_key"

// PGStore persists bookings in the bookings table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const bookingColumns = `b.id, b.reference, b.service_id, coalesce(s.name_en, ''), b.booking_date, b.booking_time,
	b.estimated_duration, b.urgency, b.emirate, b.area, b.property_type, b.address, b.issue_description,
	b.photos, b.client_name, b.client_email, b.client_phone, b.contact_method,
	b.base_price, b.hourly_rate, b.urgency_multiplier, b.subtotal, b.vat_amount, b.total_price,
	b.status, b.created_at, b.updated_at`

func (s *PGStore) Create(ctx context.Context, b *Booking) error {
	err := s.db.QueryRowContext(ctx, `
		insert into bookings (
			reference, service_id, booking_date, booking_time, estimated_duration, urgency,
			emirate, area, property_type, address, issue_description, photos,
			client_name, client_email, client_phone, contact_method,
			base_price, hourly_rate, urgency_multiplier, subtotal, vat_amount, total_price,
			status, client_ip, created_at, updated_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$25)
		returning id`,
		b.Reference, b.ServiceID, b.ScheduledDate.Format("2006-01-02"), b.TimeSlot, b.Hours, string(b.Urgency),
		string(b.Emirate), b.Area, string(b.PropertyType), b.Address, b.IssueDescription, strings.Join(b.Photos, "\n"),
		b.ClientName, b.ClientEmail, b.ClientPhone, string(b.ContactMethod),
		b.Quote.BasePrice, b.Quote.HourlyRate, b.Quote.Multiplier, b.Quote.Subtotal, b.Quote.VAT, b.Quote.Total,
		string(b.Status), nullable(b.ClientIP), b.CreatedAt,
	).Scan(&b.ID)
	if pg.IsUniqueViolation(err, ReferenceConstraint) {
		return ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scanner interface{ Scan(...any) error }

func scanBooking(row scanner) (*Booking, error) {
	var (
		b       Booking
		date    time.Time
		photos  string
		urgency string
		emirate string
		prop    string
		contact string
		status  string
	)
	err := row.Scan(&b.ID, &b.Reference, &b.ServiceID, &b.ServiceName, &date, &b.TimeSlot,
		&b.Hours, &urgency, &emirate, &b.Area, &prop, &b.Address, &b.IssueDescription,
		&photos, &b.ClientName, &b.ClientEmail, &b.ClientPhone, &contact,
		&b.Quote.BasePrice, &b.Quote.HourlyRate, &b.Quote.Multiplier, &b.Quote.Subtotal, &b.Quote.VAT, &b.Quote.Total,
		&status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.ScheduledDate = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, Dubai)
	b.Urgency = Urgency(urgency)
	b.Emirate = Emirate(emirate)
	b.PropertyType = PropertyType(prop)
	b.ContactMethod = ContactMethod(contact)
	b.Status = Status(status)
	b.Quote.Urgency = b.Urgency
	b.Quote.Hours = b.Hours
	b.Quote.Adjusted = b.Quote.Subtotal.Mul(b.Quote.Multiplier).Round(2)
	if photos != "" {
		b.Photos = strings.Split(photos, "\n")
	}
	return &b, nil
}

func (s *PGStore) FindByReference(ctx context.Context, reference string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `select `+bookingColumns+`
		from bookings b left join services s on s.id = b.service_id
		where b.reference = $1`, reference)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return b, nil
}

func (s *PGStore) ListRecent(ctx context.Context, limit int) ([]*Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `select `+bookingColumns+`
		from bookings b left join services s on s.id = b.service_id
		order by b.created_at desc, b.id desc
		limit $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `select status, count(*) from bookings group by status`)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(Statuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, reference string, from, to Status, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update bookings set status = $3, updated_at = $4
		where reference = $1 and status = $2`, reference, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select exists(select 1 from bookings where reference = $1)`, reference).Scan(&exists); err != nil {
		return fmt.Errorf("check booking: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}
