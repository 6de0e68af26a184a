package voiceai

import (
	"context"
	"strings"

	"github.com/wolfman30/phone-assistant/internal/crm"
)

// Service is one bookable service as described to callers.
type Service struct {
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration"`
	Price           float64 `json:"price"`
	Description     string  `json:"description,omitempty"`
}

// DefaultServices is the catalog used when no backend provides one.
var DefaultServices = []Service{
	{Name: "Consultation", DurationMinutes: 30, Price: 100, Description: "30-minute consultation session"},
	{Name: "Full Service", DurationMinutes: 60, Price: 200, Description: "60-minute full service session"},
}

// ServiceSource supplies the service catalog.
type ServiceSource interface {
	Services(ctx context.Context) ([]Service, error)
}

// StaticServices is a fixed catalog.
type StaticServices []Service

func (s StaticServices) Services(context.Context) ([]Service, error) {
	return s, nil
}

type crmServiceLister interface {
	GetServices(ctx context.Context) ([]crm.Record, error)
}

// CRMServices reads the catalog from the CRM, falling back to fallback when
// the CRM has none.
type CRMServices struct {
	client   crmServiceLister
	fallback []Service
}

// NewCRMServices wraps a CRM client as a ServiceSource.
func NewCRMServices(client crmServiceLister, fallback []Service) *CRMServices {
	return &CRMServices{client: client, fallback: fallback}
}

func (s *CRMServices) Services(ctx context.Context) ([]Service, error) {
	records, err := s.client.GetServices(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(records))
	for _, rec := range records {
		name := rec.String("name")
		if name == "" {
			continue
		}
		out = append(out, Service{
			Name:            name,
			DurationMinutes: int(number(rec, "duration", "duration_minutes")),
			Price:           number(rec, "price"),
			Description:     rec.String("description"),
		})
	}
	if len(out) == 0 {
		return s.fallback, nil
	}
	return out, nil
}

// FindService matches a service by name, ignoring case and treating
// underscores as spaces.
func FindService(services []Service, name string) (Service, bool) {
	want := normalizeServiceName(name)
	if want == "" {
		return Service{}, false
	}
	for _, svc := range services {
		if normalizeServiceName(svc.Name) == want {
			return svc, true
		}
	}
	return Service{}, false
}

func normalizeServiceName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(name, "_", " "))), " ")
}

func number(rec crm.Record, keys ...string) float64 {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}
