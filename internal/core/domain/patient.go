package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the layout used for birth and death dates in source files.
const DateLayout = "2006-01-02"

// Fractional digits and precision enforced on the decimal columns.
const (
	CoordinatePlaces = 4
	MoneyPlaces      = 2
	MaxDecimalDigits = 12
)

// Patient is a normalised patient record ready for persistence.
// It is built once per parsed row and not mutated afterwards.
type Patient struct {
	// ID is the primary identifier. Generated on insert if nil.
	ID uuid.UUID

	BirthDate time.Time
	DeathDate *time.Time

	// SSN is the unique key used for duplicate detection.
	SSN string

	DriversLicense *string
	Passport       *string

	Prefix *string
	First  string
	Last   string
	Suffix *string
	Maiden *string

	Marital   *MaritalStatus
	Race      Race
	Ethnicity Ethnicity
	Gender    Gender

	Birthplace string
	Address    string
	City       string
	State      string
	County     string
	Zip        *string

	// Lat and Lon carry at most CoordinatePlaces fractional digits.
	Lat decimal.Decimal
	Lon decimal.Decimal

	// HealthcareExpenses and HealthcareCoverage carry at most MoneyPlaces fractional digits.
	HealthcareExpenses decimal.Decimal
	HealthcareCoverage decimal.Decimal
}

// EnsureID assigns a fresh identifier when the record has none.
func (p *Patient) EnsureID() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
}

// Validate checks the record against the storage schema.
// Errors wrap ErrInvalidInput.
func (p *Patient) Validate() error {
	if p.SSN == "" {
		return fmt.Errorf("%w: ssn is required", ErrInvalidInput)
	}
	if p.First == "" || p.Last == "" {
		return fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	if p.BirthDate.IsZero() {
		return fmt.Errorf("%w: birthdate is required", ErrInvalidInput)
	}

	required := []struct {
		name  string
		value string
		max   int
	}{
		{"ssn", p.SSN, 32},
		{"first", p.First, 128},
		{"last", p.Last, 128},
		{"birthplace", p.Birthplace, 128},
		{"address", p.Address, 256},
		{"city", p.City, 64},
		{"state", p.State, 64},
		{"county", p.County, 64},
	}
	for _, f := range required {
		if err := checkLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	optional := []struct {
		name  string
		value *string
		max   int
	}{
		{"drivers_license", p.DriversLicense, 64},
		{"passport", p.Passport, 16},
		{"prefix", p.Prefix, 16},
		{"suffix", p.Suffix, 16},
		{"maiden", p.Maiden, 128},
		{"zip", p.Zip, 16},
	}
	for _, f := range optional {
		if f.value == nil {
			continue
		}
		if err := checkLength(f.name, *f.value, f.max); err != nil {
			return err
		}
	}

	if !p.Race.IsValid() {
		return fmt.Errorf("%w: race %q", ErrInvalidInput, p.Race)
	}
	if !p.Ethnicity.IsValid() {
		return fmt.Errorf("%w: ethnicity %q", ErrInvalidInput, p.Ethnicity)
	}
	if !p.Gender.IsValid() {
		return fmt.Errorf("%w: gender %q", ErrInvalidInput, p.Gender)
	}
	if p.Marital != nil && !p.Marital.IsValid() {
		return fmt.Errorf("%w: marital %q", ErrInvalidInput, *p.Marital)
	}

	decimals := []struct {
		name   string
		value  decimal.Decimal
		places int32
	}{
		{"lat", p.Lat, CoordinatePlaces},
		{"lon", p.Lon, CoordinatePlaces},
		{"healthcare_expenses", p.HealthcareExpenses, MoneyPlaces},
		{"healthcare_coverage", p.HealthcareCoverage, MoneyPlaces},
	}
	for _, d := range decimals {
		if err := checkDecimal(d.name, d.value, d.places); err != nil {
			return err
		}
	}
	return nil
}

func checkLength(name, value string, limit int) error {
	if n := len([]rune(value)); n > limit {
		return fmt.Errorf("%w: %s exceeds %d characters (got %d)", ErrInvalidInput, name, limit, n)
	}
	return nil
}

// checkDecimal mirrors a NUMERIC(12, places) column: at most places
// fractional digits and MaxDecimalDigits digits overall.
func checkDecimal(name string, d decimal.Decimal, places int32) error {
	if !d.Equal(d.Truncate(places)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidInput, name, places)
	}
	if d.Abs().GreaterThanOrEqual(decimal.New(1, MaxDecimalDigits-places)) {
		return fmt.Errorf("%w: %s exceeds %d digits", ErrInvalidInput, name, MaxDecimalDigits)
	}
	return nil
}
