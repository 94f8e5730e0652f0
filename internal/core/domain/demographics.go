package domain

// Race is the closed set of race codes stored for a patient.
type Race string

// Available race codes.
const (
	RaceWhite Race = "white"
	RaceBlack Race = "black"
	RaceAsian Race = "asian"
)

// IsValid returns true if the race code is recognised.
func (r Race) IsValid() bool {
	switch r {
	case RaceWhite, RaceBlack, RaceAsian:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Race) String() string {
	return string(r)
}

// Ethnicity is the closed set of ethnicity codes stored for a patient.
type Ethnicity string

// Available ethnicity codes.
const (
	EthnicityHispanic    Ethnicity = "hispanic"
	EthnicityNonHispanic Ethnicity = "nonhispanic"
)

// IsValid returns true if the ethnicity code is recognised.
func (e Ethnicity) IsValid() bool {
	return e == EthnicityHispanic || e == EthnicityNonHispanic
}

// String returns the string representation.
func (e Ethnicity) String() string {
	return string(e)
}

// Gender is the closed set of gender codes stored for a patient.
type Gender string

// Available gender codes.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// IsValid returns true if the gender code is recognised.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (g Gender) String() string {
	return string(g)
}

// MaritalStatus is the closed set of marital status codes.
type MaritalStatus string

// Available marital status codes.
const (
	MaritalMarried MaritalStatus = "married"
	MaritalSingle  MaritalStatus = "single"
	MaritalNone    MaritalStatus = "none"
)

// IsValid returns true if the marital status is recognised.
func (m MaritalStatus) IsValid() bool {
	switch m {
	case MaritalMarried, MaritalSingle, MaritalNone:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m MaritalStatus) String() string {
	return string(m)
}
