package booking

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownUrgency       = errors.New("booking: unknown urgency")
	ErrUnknownEmirate       = errors.New("booking: unknown emirate")
	ErrUnknownPropertyType  = errors.New("booking: unknown property type")
	ErrUnknownContactMethod = errors.New("booking: unknown contact method")
)

// Urgency selects the price multiplier of a booking.
type Urgency string

const (
	UrgencyRegular   Urgency = "regular"
	UrgencyPriority  Urgency = "priority"
	UrgencyEmergency Urgency = "emergency"
)

var (
	multiplierRegular   = decimal.NewFromInt(1)
	multiplierPriority  = decimal.RequireFromString("1.25")
	multiplierEmergency = decimal.RequireFromString("1.5")
)

// ParseUrgency accepts only the three known values. An empty or unknown
// value is an error; there is no silent fallback to regular.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if _, err := u.Multiplier(); err != nil {
		return "", err
	}
	return u, nil
}

func (u Urgency) Multiplier() (decimal.Decimal, error) {
	switch u {
	case UrgencyRegular:
		return multiplierRegular, nil
	case UrgencyPriority:
		return multiplierPriority, nil
	case UrgencyEmergency:
		return multiplierEmergency, nil
	default:
		return decimal.Decimal{}, ErrUnknownUrgency
	}
}

// Emirate is one of the seven UAE emirates.
type Emirate string

const (
	EmirateDubai        Emirate = "dubai"
	EmirateAbuDhabi     Emirate = "abu_dhabi"
	EmirateSharjah      Emirate = "sharjah"
	EmirateAjman        Emirate = "ajman"
	EmirateUmmAlQuwain  Emirate = "umm_al_quwain"
	EmirateRasAlKhaimah Emirate = "ras_al_khaimah"
	EmirateFujairah     Emirate = "fujairah"
)

var emirateLabels = map[Emirate]string{
	EmirateDubai:        "Dubai",
	EmirateAbuDhabi:     "Abu Dhabi",
	EmirateSharjah:      "Sharjah",
	EmirateAjman:        "Ajman",
	EmirateUmmAlQuwain:  "Umm Al Quwain",
	EmirateRasAlKhaimah: "Ras Al Khaimah",
	EmirateFujairah:     "Fujairah",
}

func ParseEmirate(s string) (Emirate, error) {
	e := Emirate(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := emirateLabels[e]; !ok {
		return "", ErrUnknownEmirate
	}
	return e, nil
}

func (e Emirate) Label() string {
	return emirateLabels[e]
}

type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyVilla      PropertyType = "villa"
	PropertyTownhouse  PropertyType = "townhouse"
	PropertyOffice     PropertyType = "office"
	PropertyCommercial PropertyType = "commercial"
)

func ParsePropertyType(s string) (PropertyType, error) {
	p := PropertyType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PropertyApartment, PropertyVilla, PropertyTownhouse, PropertyOffice, PropertyCommercial:
		return p, nil
	}
	return "", ErrUnknownPropertyType
}

// ContactMethod is the client's preferred channel.
type ContactMethod string

const (
	ContactPhone    ContactMethod = "phone"
	ContactEmail    ContactMethod = "email"
	ContactWhatsApp ContactMethod = "whatsapp"
)

func ParseContactMethod(s string) (ContactMethod, error) {
	c := ContactMethod(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ContactPhone, ContactEmail, ContactWhatsApp:
		return c, nil
	}
	return "", ErrUnknownContactMethod
}
