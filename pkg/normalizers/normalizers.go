// Package normalizers provides field normalization for candidate matching
// and identity key generation
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("trim", Trim)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("nname", NormalizeName)
	Register("noffice", NormalizeOffice)
	Register("nparty", NormalizeParty)
	Register("njurisdiction", NormalizeJurisdiction)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("nzip", NormalizeZipCode)
	Register("naddress", NormalizeAddress)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names pass the
// value through untouched.
func Apply(value, normalizer string) string {
	fn, ok := Get(normalizer)
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizePhone reduces a phone number to its digits, so "(919) 555-0142"
// and "919.555.0142" compare equal.
func NormalizePhone(s string) string {
	return DigitsOnly(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var nicknameRe = regexp.MustCompile(`\([^)]*\)|"[^"]*"`)

// NormalizeName normalizes a candidate's name for matching
// - Lowercase
// - Remove parenthetical/quoted nicknames: John (Johnny) Smith
// - Remove generational and professional suffixes (Jr., Sr., III, etc.)
// - Remove punctuation and collapse whitespace
func NormalizeName(s string) string {
	// Drop nicknames before anything else so their punctuation never leaks
	s = nicknameRe.ReplaceAllString(s, " ")

	// Lowercase
	s = strings.ToLower(s)

	// Remove punctuation, collapsing runs of whitespace
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) || r == ',' || r == '.' {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	s = strings.TrimSpace(b.String())

	// Remove common suffixes
	suffixes := []string{" jr", " sr", " iii", " ii", " iv", " v", " phd", " md", " dds", " esq"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}

	return s
}

// NormalizeOffice normalizes an office name for matching: lowercase,
// punctuation stripped, whitespace collapsed. District designators are kept
// because the same office title repeats across districts.
func NormalizeOffice(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			b.WriteRune(' ')
			prevSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// partyNames maps state feed party codes to canonical labels.
var partyNames = map[string]string{
	"DEM": "Democratic",
	"D":   "Democratic",
	"REP": "Republican",
	"R":   "Republican",
	"LIB": "Libertarian",
	"GRE": "Green",
	"GRN": "Green",
	"UNA": "Unaffiliated",
	"UN":  "Unaffiliated",
	"IND": "Independent",
	"I":   "Independent",
	"NON": "Nonpartisan",
	"NP":  "Nonpartisan",
	"CST": "Constitution",
	"NLB": "No Labels",
	"WTP": "We The People",
	"JFA": "Justice For All",
}

// NormalizeParty maps a party code or label to its canonical label.
// Unknown values are returned title-trimmed rather than dropped.
func NormalizeParty(s string) string {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return ""
	}
	if name, ok := partyNames[code]; ok {
		return name
	}
	// Already canonical, or a label we don't have a code for
	return strings.TrimSpace(s)
}

// NormalizeJurisdiction canonicalizes a county/jurisdiction label so the
// same county fed with different casing or a COUNTY suffix dedupes cleanly.
func NormalizeJurisdiction(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " COUNTY")
	spaceRe := regexp.MustCompile(`\s+`)
	return spaceRe.ReplaceAllString(s, " ")
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeZipCode normalizes a US zip code
func NormalizeZipCode(s string) string {
	digits := DigitsOnly(s)
	if len(digits) == 5 || len(digits) == 9 {
		return digits
	}
	return ""
}

// NormalizeAddress normalizes a mailing address string
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)

	// Common abbreviations
	replacements := map[string]string{
		" street":    " st",
		" avenue":    " ave",
		" boulevard": " blvd",
		" drive":     " dr",
		" road":      " rd",
		" lane":      " ln",
		" court":     " ct",
		" circle":    " cir",
		" place":     " pl",
		" apartment": " apt",
		" suite":     " ste",
		" north":     " n",
		" south":     " s",
		" east":      " e",
		" west":      " w",
	}

	for full, abbr := range replacements {
		s = strings.ReplaceAll(s, full, abbr)
	}

	// Remove extra whitespace
	spaceRe := regexp.MustCompile(`\s+`)
	s = spaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}
