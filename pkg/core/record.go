package core

import (
	"encoding/json"
	"strings"
)

// Canonical field names that heterogeneous source formats are mapped onto.
// Sources use a mix of French and English headers; the canonical set keeps
// the French names the corpus was built around.
const (
	FieldEmail       = "email"
	FieldNom         = "nom"
	FieldPrenom      = "prenom"
	FieldTelephone   = "telephone"
	FieldAdresse     = "adresse"
	FieldVille       = "ville"
	FieldCodePostal  = "code_postal"
	FieldIdentifiant = "identifiant"
	FieldPassword    = "password"
	FieldHash        = "hash"
	FieldIP          = "ip"
	FieldIBAN        = "iban"
	FieldBIC         = "bic"
	FieldDateNaiss   = "date_naissance"
	FieldCivilite    = "civilite"
	FieldURL         = "url"
	FieldMAC         = "mac"
	FieldVIN         = "vin"
	FieldPays        = "pays"
	FieldDonnee      = "donnee"
)

// Record is one normalized search hit: a source label, the original raw line
// when the source was unstructured, and an ordered map of canonical field
// names to values. Field order is preserved so results render the way the
// line was written.
type Record struct {
	source string
	raw    string
	keys   []string
	fields map[string]string
}

// NewRecord returns an empty record for the given source label.
func NewRecord(source string) *Record {
	return &Record{
		source: source,
		fields: make(map[string]string),
	}
}

// Source returns the label of the source this record came from.
func (r *Record) Source() string { return r.source }

// Raw returns the original raw line, or "" when the source was tabular.
func (r *Record) Raw() string { return r.raw }

// SetRaw attaches the original raw line to the record.
func (r *Record) SetRaw(raw string) { r.raw = raw }

// Set stores a field value, preserving first-insertion order. Setting an
// existing key overwrites the value without changing its position.
func (r *Record) Set(key, value string) {
	if _, exists := r.fields[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

// Get returns the value for key and whether it is present.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Has reports whether the record carries the given field.
func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Append concatenates value onto an existing field with a space, or sets it
// if absent. Used to merge address complements into the address field.
func (r *Record) Append(key, value string) {
	if existing, ok := r.fields[key]; ok && existing != "" {
		r.fields[key] = existing + " " + value
		return
	}
	r.Set(key, value)
}

// Len returns the number of fields (source and raw line excluded).
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Empty reports whether the record carries no useful signal: no fields at
// all, or only empty values. Such records are dropped by callers.
func (r *Record) Empty() bool {
	for _, k := range r.keys {
		if strings.TrimSpace(r.fields[k]) != "" {
			return false
		}
	}
	return true
}

// MarshalJSON renders the record as a flat object, matching the shape the
// original API exposed: fields at the top level plus _source and _raw.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.fields)+2)
	for k, v := range r.fields {
		out[k] = v
	}
	if r.source != "" {
		out["_source"] = r.source
	}
	if r.raw != "" {
		out["_raw"] = r.raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a record from the flat object shape. Field order is
// not preserved across the wire; it is not needed after transport.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.fields = make(map[string]string, len(flat))
	r.keys = r.keys[:0]
	for k, v := range flat {
		switch k {
		case "_source":
			r.source = v
		case "_raw":
			r.raw = v
		default:
			r.Set(k, v)
		}
	}
	return nil
}

// Result is the outcome of querying one participant or the merged federation.
type Result struct {
	// Records holds the normalized, filtered records.
	Records []*Record

	// Total is the true match count when the participant could compute it
	// cheaply, or nil when unknown (always the case for full-text sources,
	// where the over-fetch window does not represent the real count).
	Total *int

	// Partial is true when a deadline fired before all participants or
	// objects were fully scanned.
	Partial bool
}

// EmptyResult returns a result with zero records and a known total of 0.
func EmptyResult() *Result {
	zero := 0
	return &Result{Records: nil, Total: &zero}
}

// KnownTotal is a convenience for building a *int total.
func KnownTotal(n int) *int { return &n }
