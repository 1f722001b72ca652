package classify

import "strings"

// headerAliases maps common header and JSON key spellings, across the mix of
// French and English exports found in the corpus, to canonical field names.
var headerAliases = map[string]string{
	"email":             "email",
	"e-mail":            "email",
	"mail":              "email",
	"courriel":          "email",
	"email_address":     "email",
	"adresse_email":     "email",
	"nom":               "nom",
	"name":              "nom",
	"lastname":          "nom",
	"last_name":         "nom",
	"surname":           "nom",
	"nom_naissance":     "nom",
	"prenom":            "prenom",
	"firstname":         "prenom",
	"first_name":        "prenom",
	"given_name":        "prenom",
	"telephone":         "telephone",
	"phone":             "telephone",
	"tel":               "telephone",
	"mobile":            "telephone",
	"portable":          "telephone",
	"tel_mobile":        "telephone",
	"phone_number":      "telephone",
	"numero":            "telephone",
	"adresse":           "adresse",
	"address":           "adresse",
	"rue":               "adresse",
	"street":            "adresse",
	"addr":              "adresse",
	"adresse1":          "adresse",
	"cplt_adresse":      "cplt_adresse",
	"adresse2":          "cplt_adresse",
	"ville":             "ville",
	"city":              "ville",
	"commune":           "ville",
	"code_postal":       "code_postal",
	"codepostal":        "code_postal",
	"cp":                "code_postal",
	"zip":               "code_postal",
	"zipcode":           "code_postal",
	"zip_code":          "code_postal",
	"postal_code":       "code_postal",
	"pays":              "pays",
	"country":           "pays",
	"identifiant":       "identifiant",
	"id":                "identifiant",
	"login":             "identifiant",
	"user":              "identifiant",
	"username":          "identifiant",
	"pseudo":            "identifiant",
	"user_name":         "identifiant",
	"account":           "identifiant",
	"password":          "password",
	"pass":              "password",
	"passwd":            "password",
	"mdp":               "password",
	"mot_de_passe":      "password",
	"hash":              "hash",
	"password_hash":     "hash",
	"hashed":            "hash",
	"ip":                "ip",
	"ip_address":        "ip",
	"adresse_ip":        "ip",
	"iban":              "iban",
	"bic":               "bic",
	"swift":             "bic",
	"date_naissance":    "date_naissance",
	"birthdate":         "date_naissance",
	"birthday":          "date_naissance",
	"dob":               "date_naissance",
	"date_de_naissance": "date_naissance",
	"naissance":         "date_naissance",
	"civilite":          "civilite",
	"civility":          "civilite",
	"gender":            "civilite",
	"sexe":              "civilite",
	"titre":             "civilite",
	"url":               "url",
	"website":           "url",
	"site":              "url",
	"mac":               "mac",
	"mac_address":       "mac",
	"vin":               "vin",
	"discord":           "discord",
	"discord_id":        "discord",
	"discordid":         "discord",
	"steam":             "steam",
	"steam_id":          "steam",
	"steamid":           "steam",
}

// MapHeaderKey maps a header or JSON key spelling to its canonical field
// name. Unknown keys pass through lower-cased with spaces turned into
// underscores, so nothing is ever lost.
func MapHeaderKey(key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	if canonical, ok := headerAliases[normalized]; ok {
		return canonical
	}
	return normalized
}
