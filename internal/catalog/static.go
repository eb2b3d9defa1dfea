package catalog

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

var _ Catalog = (*Static)(nil)

// Static serves a fixed catalog from memory. Used when no database is
// configured and in tests.
type Static struct {
	services     map[int64]Service
	projects     []Project
	testimonials []Testimonial
}

func NewStatic(services []Service, projects []Project, testimonials []Testimonial) *Static {
	s := &Static{
		services:     make(map[int64]Service, len(services)),
		projects:     projects,
		testimonials: testimonials,
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
	}
	return s
}

func (s *Static) FindService(_ context.Context, id int64) (*Service, error) {
	svc, ok := s.services[id]
	if !ok || !svc.Active {
		return nil, ErrNotFound
	}
	return &svc, nil
}

func (s *Static) ListServices(context.Context) ([]Service, error) {
	out := make([]Service, 0, len(s.services))
	for _, svc := range s.services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Static) ListProjects(_ context.Context, limit int) ([]Project, error) {
	limit = clampLimit(limit)
	if len(s.projects) < limit {
		limit = len(s.projects)
	}
	return append([]Project(nil), s.projects[:limit]...), nil
}

func (s *Static) ListTestimonials(_ context.Context, limit int) ([]Testimonial, error) {
	limit = clampLimit(limit)
	if len(s.testimonials) < limit {
		limit = len(s.testimonials)
	}
	return append([]Testimonial(nil), s.testimonials[:limit]...), nil
}

func aed(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// DefaultServices mirrors the seed data shipped with the migrations.
func DefaultServices() []Service {
	return []Service{
		{ID: 1, Slug: "ac-maintenance", NameEN: "AC Maintenance", NameAR: "صيانة التكييف", Category: "hvac", Icon: "snowflake",
			DescriptionEN: "Servicing, gas top-up and repair of split and ducted units.", DescriptionAR: "خدمة وإعادة تعبئة الغاز وإصلاح وحدات التكييف.",
			BasePrice: aed("150"), HourlyRate: aed("60"), Active: true, SortOrder: 1},
		{ID: 2, Slug: "plumbing", NameEN: "Plumbing", NameAR: "السباكة", Category: "plumbing", Icon: "wrench",
			DescriptionEN: "Leaks, blockages, water heaters and fixture installation.", DescriptionAR: "التسربات والانسدادات وسخانات المياه وتركيب التجهيزات.",
			BasePrice: aed("120"), HourlyRate: aed("55"), Active: true, SortOrder: 2},
		{ID: 3, Slug: "electrical", NameEN: "Electrical", NameAR: "الأعمال الكهربائية", Category: "electrical", Icon: "bolt",
			DescriptionEN: "Fault finding, rewiring, lighting and DB board work.", DescriptionAR: "تحديد الأعطال وإعادة التمديد والإنارة ولوحات التوزيع.",
			BasePrice: aed("180"), HourlyRate: aed("75"), Active: true, SortOrder: 3},
		{ID: 4, Slug: "deep-cleaning", NameEN: "Deep Cleaning", NameAR: "التنظيف العميق", Category: "cleaning", Icon: "sparkles",
			DescriptionEN: "Move-in, move-out and post-renovation deep cleans.", DescriptionAR: "تنظيف شامل عند الانتقال وبعد أعمال التجديد.",
			BasePrice: aed("200"), HourlyRate: aed("45"), Active: true, SortOrder: 4},
		{ID: 5, Slug: "painting", NameEN: "Painting", NameAR: "الدهانات", Category: "painting", Icon: "brush",
			DescriptionEN: "Interior and exterior painting with surface preparation.", DescriptionAR: "دهانات داخلية وخارجية مع تجهيز الأسطح.",
			BasePrice: aed("250"), HourlyRate: aed("65"), Active: true, SortOrder: 5},
		{ID: 6, Slug: "handyman", NameEN: "Handyman", NameAR: "أعمال الصيانة العامة", Category: "general", Icon: "hammer",
			DescriptionEN: "Furniture assembly, mounting, minor carpentry and repairs.", DescriptionAR: "تركيب الأثاث والتثبيت وأعمال النجارة البسيطة.",
			BasePrice: aed("100"), HourlyRate: aed("50"), Active: true, SortOrder: 6},
		{ID: 7, Slug: "pest-control", NameEN: "Pest Control", NameAR: "مكافحة الحشرات", Category: "pest", Icon: "shield",
			DescriptionEN: "Licensed treatment for cockroaches, bed bugs and termites.", DescriptionAR: "معالجة مرخصة للصراصير وبق الفراش والنمل الأبيض.",
			BasePrice: aed("220"), HourlyRate: aed("40"), Active: true, SortOrder: 7},
	}
}
