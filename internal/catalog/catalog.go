// Package catalog serves the read-only content of the site: bookable
// services, portfolio projects and testimonials.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("catalog: not found")

// Service is a bookable service with its price inputs.
type Service struct {
	ID            int64           `json:"id"`
	Slug          string          `json:"slug"`
	NameEN        string          `json:"name_en"`
	NameAR        string          `json:"name_ar"`
	DescriptionEN string          `json:"description_en"`
	DescriptionAR string          `json:"description_ar"`
	Category      string          `json:"category"`
	Icon          string          `json:"icon"`
	BasePrice     decimal.Decimal `json:"base_price"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	Active        bool            `json:"-"`
	SortOrder     int             `json:"-"`
}

// Project is a portfolio entry.
type Project struct {
	ID          int64      `json:"id"`
	TitleEN     string     `json:"title_en"`
	TitleAR     string     `json:"title_ar"`
	SummaryEN   string     `json:"summary_en"`
	SummaryAR   string     `json:"summary_ar"`
	Category    string     `json:"category"`
	Location    string     `json:"location"`
	ImageURL    string     `json:"image_url"`
	CompletedOn *time.Time `json:"completed_on,omitempty"`
	Featured    bool       `json:"featured"`
}

// Testimonial is a published client quote.
type Testimonial struct {
	ID         int64  `json:"id"`
	ClientName string `json:"client_name"`
	Company    string `json:"company,omitempty"`
	QuoteEN    string `json:"quote_en"`
	QuoteAR    string `json:"quote_ar"`
	Rating     int    `json:"rating"`
}

// Catalog is the read side used by pages and the booking pipeline.
type Catalog interface {
	// FindService returns an active service or ErrNotFound.
	FindService(ctx context.Context, id int64) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)
	ListProjects(ctx context.Context, limit int) ([]Project, error)
	ListTestimonials(ctx context.Context, limit int) ([]Testimonial, error)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
