// Package rowcodec converts patients to and from the text column values
// shared by the SQL stores.
package rowcodec

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// Columns lists the patients table columns in Args/Targets order.
var Columns = []string{
	"id", "birthdate", "deathdate", "ssn", "drivers", "passport",
	"prefix", "first", "last", "suffix", "maiden", "marital",
	"race", "ethnicity", "gender", "birthplace", "address",
	"city", "state", "county", "zip", "lat", "lon",
	"healthcare_expenses", "healthcare_coverage",
}

// Record is a patient row with every value in its text form.
// Nil pointers are SQL NULLs.
type Record struct {
	ID                 string
	BirthDate          string
	DeathDate          *string
	SSN                string
	Drivers            *string
	Passport           *string
	Prefix             *string
	First              string
	Last               string
	Suffix             *string
	Maiden             *string
	Marital            *string
	Race               string
	Ethnicity          string
	Gender             string
	Birthplace         string
	Address            string
	City               string
	State              string
	County             string
	Zip                *string
	Lat                string
	Lon                string
	HealthcareExpenses string
	HealthcareCoverage string
}

// FromPatient encodes p. Decimals keep their fixed scale.
func FromPatient(p *domain.Patient) Record {
	r := Record{
		ID:                 p.ID.String(),
		BirthDate:          p.BirthDate.Format(domain.DateLayout),
		SSN:                p.SSN,
		Drivers:            p.DriversLicense,
		Passport:           p.Passport,
		Prefix:             p.Prefix,
		First:              p.First,
		Last:               p.Last,
		Suffix:             p.Suffix,
		Maiden:             p.Maiden,
		Race:               string(p.Race),
		Ethnicity:          string(p.Ethnicity),
		Gender:             string(p.Gender),
		Birthplace:         p.Birthplace,
		Address:            p.Address,
		City:               p.City,
		State:              p.State,
		County:             p.County,
		Zip:                p.Zip,
		Lat:                p.Lat.StringFixed(domain.CoordinatePlaces),
		Lon:                p.Lon.StringFixed(domain.CoordinatePlaces),
		HealthcareExpenses: p.HealthcareExpenses.StringFixed(domain.MoneyPlaces),
		HealthcareCoverage: p.HealthcareCoverage.StringFixed(domain.MoneyPlaces),
	}
	if p.DeathDate != nil {
		d := p.DeathDate.Format(domain.DateLayout)
		r.DeathDate = &d
	}
	if p.Marital != nil {
		m := string(*p.Marital)
		r.Marital = &m
	}
	return r
}

// Args returns the values in Columns order for an INSERT.
func (r *Record) Args() []any {
	return []any{
		r.ID, r.BirthDate, nullable(r.DeathDate), r.SSN, nullable(r.Drivers), nullable(r.Passport),
		nullable(r.Prefix), r.First, r.Last, nullable(r.Suffix), nullable(r.Maiden), nullable(r.Marital),
		r.Race, r.Ethnicity, r.Gender, r.Birthplace, r.Address,
		r.City, r.State, r.County, nullable(r.Zip), r.Lat, r.Lon,
		r.HealthcareExpenses, r.HealthcareCoverage,
	}
}

// Targets returns scan destinations in Columns order.
func (r *Record) Targets() []any {
	return []any{
		&r.ID, &r.BirthDate, &r.DeathDate, &r.SSN, &r.Drivers, &r.Passport,
		&r.Prefix, &r.First, &r.Last, &r.Suffix, &r.Maiden, &r.Marital,
		&r.Race, &r.Ethnicity, &r.Gender, &r.Birthplace, &r.Address,
		&r.City, &r.State, &r.County, &r.Zip, &r.Lat, &r.Lon,
		&r.HealthcareExpenses, &r.HealthcareCoverage,
	}
}

// Patient decodes the record.
func (r *Record) Patient() (domain.Patient, error) {
	p := domain.Patient{
		SSN:            r.SSN,
		DriversLicense: r.Drivers,
		Passport:       r.Passport,
		Prefix:         r.Prefix,
		First:          r.First,
		Last:           r.Last,
		Suffix:         r.Suffix,
		Maiden:         r.Maiden,
		Race:           domain.Race(r.Race),
		Ethnicity:      domain.Ethnicity(r.Ethnicity),
		Gender:         domain.Gender(r.Gender),
		Birthplace:     r.Birthplace,
		Address:        r.Address,
		City:           r.City,
		State:          r.State,
		County:         r.County,
		Zip:            r.Zip,
	}

	var err error
	if p.ID, err = uuid.Parse(r.ID); err != nil {
		return domain.Patient{}, fmt.Errorf("decode id: %w", err)
	}
	if p.BirthDate, err = parseDate(r.BirthDate); err != nil {
		return domain.Patient{}, fmt.Errorf("decode birthdate: %w", err)
	}
	if r.DeathDate != nil {
		d, err := parseDate(*r.DeathDate)
		if err != nil {
			return domain.Patient{}, fmt.Errorf("decode deathdate: %w", err)
		}
		p.DeathDate = &d
	}
	if r.Marital != nil {
		m := domain.MaritalStatus(*r.Marital)
		p.Marital = &m
	}

	decimals := []struct {
		name string
		src  string
		dst  *decimal.Decimal
	}{
		{"lat", r.Lat, &p.Lat},
		{"lon", r.Lon, &p.Lon},
		{"healthcare_expenses", r.HealthcareExpenses, &p.HealthcareExpenses},
		{"healthcare_coverage", r.HealthcareCoverage, &p.HealthcareCoverage},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(d.src)
		if err != nil {
			return domain.Patient{}, fmt.Errorf("decode %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return p, nil
}

// parseDate accepts a bare date or an RFC 3339 timestamp, which some
// drivers return for DATE columns.
func parseDate(s string) (time.Time, error) {
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	return time.Parse(domain.DateLayout, s)
}

// nullable turns a nil *string into an untyped nil so every driver sends NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
