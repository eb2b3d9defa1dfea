package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStaticFindService(t *testing.T) {
	services := DefaultServices()
	services = append(services, Service{ID: 99, NameEN: "Retired", BasePrice: aed("1"), HourlyRate: aed("1")})
	c := NewStatic(services, nil, nil)

	svc, err := c.FindService(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if svc.BasePrice.String() != "180" || svc.HourlyRate.String() != "75" {
		t.Fatalf("unexpected rates: base=%s hourly=%s", svc.BasePrice, svc.HourlyRate)
	}
	if _, err := c.FindService(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive service should be not found, got %v", err)
	}
	if _, err := c.FindService(context.Background(), 1234); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := c.ListServices(context.Background())
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(list) != len(DefaultServices()) {
		t.Fatalf("expected %d active services, got %d", len(DefaultServices()), len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].SortOrder > list[i].SortOrder {
			t.Fatalf("services not sorted: %v", list)
		}
	}
}

func TestStaticListLimits(t *testing.T) {
	projects := make([]Project, 30)
	c := NewStatic(nil, projects, []Testimonial{{ID: 1}, {ID: 2}})
	got, _ := c.ListProjects(context.Background(), 0)
	if len(got) != 20 {
		t.Fatalf("expected default limit 20, got %d", len(got))
	}
	tt, _ := c.ListTestimonials(context.Background(), 5)
	if len(tt) != 2 {
		t.Fatalf("expected 2 testimonials, got %d", len(tt))
	}
}

var serviceCols = []string{"id", "slug", "name_en", "name_ar", "description_en", "description_ar", "category", "icon", "base_price", "hourly_rate", "is_active", "sort_order"}

func TestPGCatalogFindService(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, slug.*from services where id = \\$1 and is_active").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(serviceCols).AddRow(int64(3), "electrical", "Electrical", "الأعمال الكهربائية", "", "", "electrical", "bolt", "180.00", "75.00", true, 3))
	mock.ExpectQuery("select id, slug.*from services where id = \\$1 and is_active").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	c := NewPGCatalog(db)
	svc, err := c.FindService(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindService: %v", err)
	}
	if !svc.BasePrice.Equal(aed("180")) || !svc.HourlyRate.Equal(aed("75")) {
		t.Fatalf("unexpected rates %s/%s", svc.BasePrice, svc.HourlyRate)
	}
	if _, err := c.FindService(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCatalogListProjectsAndTestimonials(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	done := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("from projects").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title_en", "title_ar", "summary_en", "summary_ar", "category", "location", "image_url", "completed_on", "is_featured"}).
			AddRow(int64(1), "Villa refurbishment", "تجديد فيلا", "", "", "renovation", "Jumeirah", "/img/p1.jpg", done, true).
			AddRow(int64(2), "Office fit-out", "تجهيز مكتب", "", "", "fit-out", "Business Bay", "/img/p2.jpg", nil, false))
	mock.ExpectQuery("from testimonials").WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_name", "company", "quote_en", "quote_ar", "rating"}).
			AddRow(int64(1), "Aisha K.", "", "Quick and tidy.", "سريع ومرتب.", 5))

	c := NewPGCatalog(db)
	projects, err := c.ListProjects(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 || projects[0].CompletedOn == nil || projects[1].CompletedOn != nil {
		t.Fatalf("unexpected projects %+v", projects)
	}
	testimonials, err := c.ListTestimonials(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListTestimonials: %v", err)
	}
	if len(testimonials) != 1 || testimonials[0].Rating != 5 {
		t.Fatalf("unexpected testimonials %+v", testimonials)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
