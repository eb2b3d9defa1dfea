package booking

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffb.ae/internal/apperr"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func validValues() url.Values {
	return url.Values{
		"service_id":         {"3"},
		"booking_date":       {"2025-03-04"},
		"booking_time":       {"10:30"},
		"estimated_duration": {"2"},
		"urgency":            {"priority"},
		"emirate":            {"dubai"},
		"area":               {"Jumeirah Village Circle"},
		"property_type":      {"apartment"},
		"address":            {"Building 12, Apt 1403"},
		"issue_description":  {"Sockets in the kitchen trip the breaker."},
		"client_name":        {"Layla Haddad"},
		"client_email":       {"Layla@Example.ae"},
		"client_phone":       {"050 123 4567"},
		"contact_method":     {"whatsapp"},
		"terms_accepted":     {"on"},
	}
}

func validForm() Form {
	return FormFromValues(validValues().Get)
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, apperr.KindValidation, e.Kind)
	return e.Fields
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	req, err := Validate(validForm(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(3), req.ServiceID)
	assert.Equal(t, UrgencyPriority, req.Urgency)
	assert.Equal(t, EmirateDubai, req.Emirate)
	assert.Equal(t, "+971501234567", req.ClientPhone)
	assert.Equal(t, "layla@example.ae", req.ClientEmail)
	assert.True(t, req.Hours.Equal(d("2")))
	assert.Equal(t, "2025-03-04", req.Date.Format("2006-01-02"))
}

func TestValidateReportsEveryField(t *testing.T) {
	_, err := Validate(Form{}, testNow)
	fields := fieldsOf(t, err)
	for _, field := range []string{
		"service_id", "booking_date", "booking_time", "estimated_duration", "urgency",
		"emirate", "area", "property_type", "address", "issue_description",
		"client_name", "client_email", "client_phone", "contact_method", "terms_accepted",
	} {
		assert.Contains(t, fields, field)
	}
	assert.Equal(t, "This field is required.", fields["client_email"])
}

func TestValidateFieldRules(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value string
	}{
		{"zero duration", "estimated_duration", "0"},
		{"negative duration", "estimated_duration", "-2"},
		{"too long", "estimated_duration", "13"},
		{"quarter hours", "estimated_duration", "1.25"},
		{"not a number", "estimated_duration", "two"},
		{"unknown urgency", "urgency", "whenever"},
		{"unknown emirate", "emirate", "doha"},
		{"unknown property", "property_type", "yacht"},
		{"unknown contact", "contact_method", "pigeon"},
		{"past date", "booking_date", "2025-02-28"},
		{"far future", "booking_date", "2026-01-01"},
		{"bad date", "booking_date", "04/03/2025"},
		{"bad time", "booking_time", "25:00"},
		{"foreign phone", "client_phone", "+44 20 7946 0958"},
		{"bad email", "client_email", "layla@"},
		{"short description", "issue_description", "broken"},
		{"service id", "service_id", "abc"},
		{"terms", "terms_accepted", "no"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := validValues()
			v.Set(tc.field, tc.value)
			_, err := Validate(FormFromValues(v.Get), testNow)
			fields := fieldsOf(t, err)
			assert.Contains(t, fields, tc.field)
			assert.Len(t, fields, 1, "only %s should fail: %v", tc.field, fields)
		})
	}
}

func TestValidateRejectsEarlierSlotToday(t *testing.T) {
	v := validValues()
	// testNow is 14:00 in Dubai.
	v.Set("booking_date", "2025-03-01")
	v.Set("booking_time", "13:30")
	_, err := Validate(FormFromValues(v.Get), testNow)
	assert.Contains(t, fieldsOf(t, err), "booking_time")

	v.Set("booking_time", "16:00")
	_, err = Validate(FormFromValues(v.Get), testNow)
	assert.NoError(t, err)
}

func TestNormalizePhone(t *testing.T) {
	for in, want := range map[string]string{
		"0501234567":       "+971501234567",
		"+971 55 765 4321": "+971557654321",
		"00971-4-123-4567": "+97141234567",
		"(04) 123 4567":    "+97141234567",
	} {
		got, ok := NormalizePhone(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"12345", "0812345678", "+971 8 123 4567", ""} {
		_, ok := NormalizePhone(in)
		assert.False(t, ok, in)
	}
}

func TestFormIgnoresClientPrices(t *testing.T) {
	v := validValues()
	v.Set("total_price", "1.00")
	v.Set("base_price", "0")
	f := FormFromValues(v.Get)
	assert.Equal(t, validForm(), f)
}

func TestValidateStepOnlyReportsItsFields(t *testing.T) {
	f := validForm()
	f.ClientEmail = "nope"
	f.Urgency = ""
	assert.Empty(t, ValidateStep(StepLocation, f, testNow))
	assert.Equal(t, map[string]string{"client_email": "Please enter a valid email address."}, ValidateStep(StepContact, f, testNow))
	assert.Contains(t, ValidateStep(StepSchedule, f, testNow), "urgency")
}
