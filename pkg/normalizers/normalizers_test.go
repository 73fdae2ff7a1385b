package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "John Smith", "john smith"},
		{"generational suffix", "John Smith Jr.", "john smith"},
		{"roman numeral suffix", "William Gates III", "william gates"},
		{"comma before suffix", "Smith, John, Sr.", "smith john"},
		{"parenthetical nickname", "John (Johnny) Smith", "john smith"},
		{"quoted nickname", `Robert "Bob" Jones`, "robert jones"},
		{"punctuation", "Mary-Anne O'Brien", "maryanne obrien"},
		{"extra whitespace", "  John   Smith  ", "john smith"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{"John Smith Jr.", `Robert "Bob" Jones`, "Mary-Anne O'Brien"}
	for _, input := range inputs {
		once := NormalizeName(input)
		assert.Equal(t, once, NormalizeName(once))
	}
}

func TestNormalizeOffice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"keeps district", "US House of Representatives District 4", "us house of representatives district 4"},
		{"punctuation", "N.C. State Senate, District 12", "n c state senate district 12"},
		{"whitespace", "  Governor  ", "governor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeOffice(tt.input))
		})
	}
}

func TestNormalizeParty(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DEM", "Democratic"},
		{"dem", "Democratic"},
		{"REP", "Republican"},
		{"LIB", "Libertarian"},
		{"GRN", "Green"},
		{"UNA", "Unaffiliated"},
		{"NON", "Nonpartisan"},
		{"Democratic", "Democratic"},
		{"Working Families", "Working Families"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeParty(tt.input), "input: %q", tt.input)
	}
}

func TestNormalizeJurisdiction(t *testing.T) {
	assert.Equal(t, "WAKE", NormalizeJurisdiction("Wake County"))
	assert.Equal(t, "WAKE", NormalizeJurisdiction("  wake  "))
	assert.Equal(t, "NEW HANOVER", NormalizeJurisdiction("New   Hanover County"))
}

func TestClassifyOfficeLevel(t *testing.T) {
	tests := []struct {
		office   string
		expected string
	}{
		{"US Senate", "federal"},
		{"US House of Representatives District 4", "federal"},
		{"President of the United States", "federal"},
		{"Governor", "state"},
		{"NC State Senate District 12", "state"},
		{"Attorney General", "state"},
		{"NC Supreme Court Associate Justice Seat 6", "judicial"},
		{"District Court Judge District 10", "judicial"},
		{"Clerk of Court", "judicial"},
		{"Board of County Commissioners", "state"}, // commissioner keyword wins
		{"Mayor", "local"},
		{"Town Council", "local"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClassifyOfficeLevel(tt.office), "office: %q", tt.office)
	}
}

func TestExtractDistrict(t *testing.T) {
	tests := []struct {
		office   string
		expected string
	}{
		{"US House District 04", "4"},
		{"State Senate Dist 12", "12"},
		{"Supreme Court Seat 6", "6"},
		{"School Board (3)", "3"},
		{"State House 103", "103"},
		{"Governor", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ExtractDistrict(tt.office), "office: %q", tt.office)
	}
}

func TestApplyChain(t *testing.T) {
	result := ApplyChain("  John Smith Jr.  ", "trim", "nname")
	assert.Equal(t, "john smith", result)

	// unknown normalizers pass the value through
	assert.Equal(t, "abc", Apply("abc", "does_not_exist"))
}

func TestRegistryLookup(t *testing.T) {
	fn, ok := Get("nphone")
	assert.True(t, ok)
	assert.Equal(t, "9195550100", fn("(919) 555-0100"))

	_, ok = Get("does_not_exist")
	assert.False(t, ok)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "9195550100", NormalizePhone("919.555.0100"))
	assert.Equal(t, "9195550100", NormalizePhone("(919) 555-0100"))
	assert.Equal(t, "", NormalizePhone("no digits"))
}

func TestNormalizeZipCode(t *testing.T) {
	assert.Equal(t, "27601", NormalizeZipCode("27601"))
	assert.Equal(t, "276011234", NormalizeZipCode("27601-1234"))
	// anything that is not a 5 or 9 digit zip is dropped
	assert.Equal(t, "", NormalizeZipCode("2760"))
	assert.Equal(t, "", NormalizeZipCode("not a zip"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "123 main st", NormalizeAddress("123 Main Street"))
	assert.Equal(t, "45 n oak ave apt 2", NormalizeAddress("45  North Oak Avenue Apartment 2"))
}
