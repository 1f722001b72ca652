package core

import "strings"

// CriterionType identifies what kind of value a search criterion carries.
// The set mirrors the search form: each type maps to a list of canonical
// record fields considered a strong match for that type.
type CriterionType string

const (
	TypeUsername     CriterionType = "username"
	TypeDisplayName  CriterionType = "displayName"
	TypeMACAddress   CriterionType = "macAddress"
	TypeIPAddress    CriterionType = "ipAddress"
	TypeEmail        CriterionType = "email"
	TypeAddress      CriterionType = "address"
	TypeLastName     CriterionType = "lastName"
	TypeFirstName    CriterionType = "firstName"
	TypeSSN          CriterionType = "ssn"
	TypePhone        CriterionType = "phone"
	TypeGender       CriterionType = "gender"
	TypeDOB          CriterionType = "dob"
	TypeYOB          CriterionType = "yob"
	TypeIBAN         CriterionType = "iban"
	TypeBIC          CriterionType = "bic"
	TypeHashedPass   CriterionType = "hashedPassword"
	TypePassword     CriterionType = "password"
	TypeVIN          CriterionType = "vin"
	TypeDiscordID    CriterionType = "discordId"
	TypeFivemLicense CriterionType = "fivemLicense"
	TypeSteamID      CriterionType = "steamId"
	TypeFivemID      CriterionType = "fivemId"
	TypeXbox         CriterionType = "xbox"
	TypeLive         CriterionType = "live"
)

// Criterion is one typed search input. Multiple criteria combine with AND
// semantics.
type Criterion struct {
	Type  CriterionType `json:"type"`
	Value string        `json:"value"`
}

// allowedFields maps a criterion type to the canonical field names considered
// a strong match for it. Lookups in other fields still count, but weaker
// (see pkg/relevance).
var allowedFields = map[CriterionType][]string{
	TypeEmail:        {"email", "mail"},
	TypeUsername:     {"identifiant", "username", "pseudo"},
	TypeDisplayName:  {"identifiant", "username", "pseudo", "nom", "name"},
	TypeLastName:     {"nom", "name", "last_name", "lastname", "surname", "identifiant"},
	TypeFirstName:    {"prenom", "first_name", "firstname", "identifiant"},
	TypePhone:        {"telephone", "phone", "tel", "mobile"},
	TypeIPAddress:    {"ip"},
	TypeAddress:      {"adresse", "address", "rue", "street", "ville", "city"},
	TypeSSN:          {"ssn"},
	TypeDOB:          {"date_naissance", "birthday", "dob", "birth", "date", "bday"},
	TypeYOB:          {"date_naissance", "birthday", "dob", "birth", "date", "bday"},
	TypeIBAN:         {"iban"},
	TypeBIC:          {"bic"},
	TypePassword:     {"password", "hash"},
	TypeHashedPass:   {"hash", "password"},
	TypeDiscordID:    {"discord"},
	TypeMACAddress:   {"mac"},
	TypeGender:       {"gender", "civilite"},
	TypeVIN:          {"vin"},
	TypeFivemLicense: {"fivem"},
	TypeSteamID:      {"steam"},
	TypeFivemID:      {"fivem"},
	TypeXbox:         {"xbox"},
	TypeLive:         {"live"},
}

// AllowedFields returns the canonical field names that count as a strong
// match for this criterion type, or nil for unknown types.
func (t CriterionType) AllowedFields() []string {
	return allowedFields[t]
}

// Valid reports whether the type is one of the known criterion kinds.
func (t CriterionType) Valid() bool {
	_, ok := allowedFields[t]
	return ok
}

// TrimmedValue returns the criterion value with surrounding whitespace
// removed.
func (c Criterion) TrimmedValue() string {
	return strings.TrimSpace(c.Value)
}

// FilterFilled drops criteria whose value is empty after trimming.
func FilterFilled(criteria []Criterion) []Criterion {
	filled := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		if c.TrimmedValue() != "" {
			filled = append(filled, c)
		}
	}
	return filled
}

// CriteriaValues returns the trimmed, non-empty values of the criteria.
func CriteriaValues(criteria []Criterion) []string {
	values := make([]string, 0, len(criteria))
	for _, c := range criteria {
		if v := c.TrimmedValue(); v != "" {
			values = append(values, v)
		}
	}
	return values
}
