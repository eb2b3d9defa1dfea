package catalog

import (
	"context"
	"database/sql"
	"errors"
)

var _ Catalog = (*PGCatalog)(nil)

// PGCatalog reads the services, projects and testimonials tables.
type PGCatalog struct {
	db *sql.DB
}

func NewPGCatalog(db *sql.DB) *PGCatalog {
	return &PGCatalog{db: db}
}

const serviceColumns = `id, slug, name_en, name_ar, description_en, description_ar, category, icon, base_price, hourly_rate, is_active, sort_order`

type scanner interface{ Scan(...any) error }

func scanService(row scanner) (Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.Slug, &s.NameEN, &s.NameAR, &s.DescriptionEN, &s.DescriptionAR,
		&s.Category, &s.Icon, &s.BasePrice, &s.HourlyRate, &s.Active, &s.SortOrder)
	return s, err
}

func (c *PGCatalog) FindService(ctx context.Context, id int64) (*Service, error) {
	row := c.db.QueryRowContext(ctx, `select `+serviceColumns+` from services where id = $1 and is_active`, id)
	s, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *PGCatalog) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := c.db.QueryContext(ctx, `select `+serviceColumns+` from services where is_active order by sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *PGCatalog) ListProjects(ctx context.Context, limit int) ([]Project, error) {
	rows, err := c.db.QueryContext(ctx, `
		select id, title_en, title_ar, summary_en, summary_ar, category, location, image_url, completed_on, is_featured
		from projects
		where is_published
		order by is_featured desc, completed_on desc nulls last, id desc
		limit $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var (
			p         Project
			completed sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.TitleEN, &p.TitleAR, &p.SummaryEN, &p.SummaryAR, &p.Category,
			&p.Location, &p.ImageURL, &completed, &p.Featured); err != nil {
			return nil, err
		}
		if completed.Valid {
			t := completed.Time
			p.CompletedOn = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *PGCatalog) ListTestimonials(ctx context.Context, limit int) ([]Testimonial, error) {
	rows, err := c.db.QueryContext(ctx, `
		select id, client_name, company, quote_en, quote_ar, rating
		from testimonials
		where is_published
		order by sort_order, id desc
		limit $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Testimonial
	for rows.Next() {
		var t Testimonial
		if err := rows.Scan(&t.ID, &t.ClientName, &t.Company, &t.QuoteEN, &t.QuoteAR, &t.Rating); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
