package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

// Column names in the patients CSV.
const (
	ColID                 = "Id"
	ColBirthDate          = "BIRTHDATE"
	ColDeathDate          = "DEATHDATE"
	ColSSN                = "SSN"
	ColDrivers            = "DRIVERS"
	ColPassport           = "PASSPORT"
	ColPrefix             = "PREFIX"
	ColFirst              = "FIRST"
	ColLast               = "LAST"
	ColSuffix             = "SUFFIX"
	ColMaiden             = "MAIDEN"
	ColMarital            = "MARITAL"
	ColRace               = "RACE"
	ColEthnicity          = "ETHNICITY"
	ColGender             = "GENDER"
	ColBirthplace         = "BIRTHPLACE"
	ColAddress            = "ADDRESS"
	ColCity               = "CITY"
	ColState              = "STATE"
	ColCounty             = "COUNTY"
	ColZip                = "ZIP"
	ColLat                = "LAT"
	ColLon                = "LON"
	ColHealthcareExpenses = "HEALTHCARE_EXPENSES"
	ColHealthcareCoverage = "HEALTHCARE_COVERAGE"
)

var errMissingColumn = errors.New("missing column")

var raceCodes = map[string]domain.Race{
	"white": domain.RaceWhite,
	"black": domain.RaceBlack,
	"asian": domain.RaceAsian,
}

var ethnicityCodes = map[string]domain.Ethnicity{
	"hispanic":    domain.EthnicityHispanic,
	"nonhispanic": domain.EthnicityNonHispanic,
}

// Single-letter codes match exact case; full words match lower-cased.
var genderCodes = map[string]domain.Gender{
	"M":      domain.GenderMale,
	"F":      domain.GenderFemale,
	"male":   domain.GenderMale,
	"female": domain.GenderFemale,
}

var maritalCodes = map[string]domain.MaritalStatus{
	"M":       domain.MaritalMarried,
	"S":       domain.MaritalSingle,
	"married": domain.MaritalMarried,
	"single":  domain.MaritalSingle,
}

// rowReader pulls columns out of a RawRow and remembers the first failure
// so the caller can check once at the end.
type rowReader struct {
	raw    domain.RawRow
	column string
	err    error
}

func (r *rowReader) fail(column string, err error) {
	if r.err == nil {
		r.column = column
		r.err = err
	}
}

func (r *rowReader) text(column string) string {
	v, ok := r.raw[column]
	if !ok {
		r.fail(column, errMissingColumn)
		return ""
	}
	return v
}

// optional returns nil for blank values.
func (r *rowReader) optional(column string) *string {
	v := r.text(column)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func (r *rowReader) uuid(column string) uuid.UUID {
	v := r.text(column)
	if r.err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		r.fail(column, err)
	}
	return id
}

func (r *rowReader) date(column string) time.Time {
	v := r.text(column)
	if r.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		r.fail(column, err)
	}
	return t
}

func (r *rowReader) optionalDate(column string) *time.Time {
	v := r.text(column)
	if r.err != nil || strings.TrimSpace(v) == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		r.fail(column, err)
		return nil
	}
	return &t
}

// decimal parses a float, rounds it to places fractional digits and
// converts it to an exact decimal. Rounding happens on the binary value
// before conversion so float noise never reaches validation.
func (r *rowReader) decimal(column string, places int) decimal.Decimal {
	v := r.text(column)
	if r.err != nil {
		return decimal.Zero
	}
	d, err := roundDecimal(v, places)
	if err != nil {
		r.fail(column, err)
	}
	return d
}

func roundDecimal(s string, places int) (decimal.Decimal, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return decimal.Zero, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: non-finite number %q", domain.ErrInvalidInput, s)
	}
	return decimal.NewFromString(strconv.FormatFloat(f, 'f', places, 64))
}

// ParseRow converts a raw CSV row into a validated Patient.
// Unrecognised demographic codes map to defaults and never fail the row.
// Any other problem returns a *domain.ParseError. ParseRow has no side
// effects and is safe for concurrent use.
func ParseRow(raw domain.RawRow) (domain.Patient, error) {
	r := &rowReader{raw: raw}

	p := domain.Patient{
		ID:                 r.uuid(ColID),
		BirthDate:          r.date(ColBirthDate),
		DeathDate:          r.optionalDate(ColDeathDate),
		SSN:                r.text(ColSSN),
		DriversLicense:     r.optional(ColDrivers),
		Passport:           r.optional(ColPassport),
		Prefix:             r.optional(ColPrefix),
		First:              r.text(ColFirst),
		Last:               r.text(ColLast),
		Suffix:             r.optional(ColSuffix),
		Maiden:             r.optional(ColMaiden),
		Marital:            mapMarital(r.text(ColMarital)),
		Race:               mapRace(r.text(ColRace)),
		Ethnicity:          mapEthnicity(r.text(ColEthnicity)),
		Gender:             mapGender(r.text(ColGender)),
		Birthplace:         r.text(ColBirthplace),
		Address:            r.text(ColAddress),
		City:               r.text(ColCity),
		State:              r.text(ColState),
		County:             r.text(ColCounty),
		Zip:                r.optional(ColZip),
		Lat:                r.decimal(ColLat, domain.CoordinatePlaces),
		Lon:                r.decimal(ColLon, domain.CoordinatePlaces),
		HealthcareExpenses: r.decimal(ColHealthcareExpenses, domain.MoneyPlaces),
		HealthcareCoverage: r.decimal(ColHealthcareCoverage, domain.MoneyPlaces),
	}

	if r.err != nil {
		return domain.Patient{}, &domain.ParseError{RowID: rowID(raw), Column: r.column, Err: r.err}
	}
	if err := p.Validate(); err != nil {
		return domain.Patient{}, &domain.ParseError{RowID: rowID(raw), Err: err}
	}
	return p, nil
}

func rowID(raw domain.RawRow) string {
	if id, ok := raw[ColID]; ok && id != "" {
		return id
	}
	return "unknown"
}

func mapRace(v string) domain.Race {
	if race, ok := raceCodes[strings.ToLower(v)]; ok {
		return race
	}
	return domain.RaceWhite
}

func mapEthnicity(v string) domain.Ethnicity {
	if eth, ok := ethnicityCodes[strings.ToLower(v)]; ok {
		return eth
	}
	return domain.EthnicityNonHispanic
}

func mapGender(v string) domain.Gender {
	if g, ok := genderCodes[v]; ok {
		return g
	}
	if g, ok := genderCodes[strings.ToLower(v)]; ok {
		return g
	}
	return domain.GenderOther
}

// mapMarital returns nil for a blank value so absent stays distinct from none.
func mapMarital(v string) *domain.MaritalStatus {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	m, ok := maritalCodes[v]
	if !ok {
		m, ok = maritalCodes[strings.ToLower(v)]
	}
	if !ok {
		m = domain.MaritalNone
	}
	return &m
}
