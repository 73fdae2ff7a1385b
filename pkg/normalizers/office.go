package normalizers

import (
	"regexp"
	"strings"
)

// Office level keyword sets, checked in order. Judicial is checked before
// state because judicial offices often carry "state" in their titles
// (e.g. "NC State Supreme Court").
var (
	federalKeywords = []string{
		"US PRESIDENT", "PRESIDENT OF THE UNITED STATES",
		"US SENATE", "U.S. SENATE", "UNITED STATES SENATE",
		"US HOUSE", "U.S. HOUSE", "UNITED STATES HOUSE", "US CONGRESS",
	}
	judicialKeywords = []string{
		"SUPREME COURT", "COURT OF APPEALS", "SUPERIOR COURT",
		"DISTRICT COURT JUDGE", "JUSTICE", "JUDGE", "CLERK OF COURT",
	}
	stateKeywords = []string{
		"GOVERNOR", "LIEUTENANT GOVERNOR", "ATTORNEY GENERAL",
		"SECRETARY OF STATE", "STATE TREASURER", "STATE AUDITOR",
		"COMMISSIONER", "SUPERINTENDENT OF PUBLIC INSTRUCTION",
		"STATE SENATE", "STATE HOUSE", "GENERAL ASSEMBLY",
		"HOUSE OF REPRESENTATIVES", "STATE SENATOR", "STATE REPRESENTATIVE",
	}
)

// ClassifyOfficeLevel buckets an office title into federal, state, judicial
// or local. Local is the fallback: county and municipal offices vary too
// much by state to enumerate.
func ClassifyOfficeLevel(officeName string) string {
	office := strings.ToUpper(officeName)

	for _, kw := range federalKeywords {
		if strings.Contains(office, kw) {
			return "federal"
		}
	}
	for _, kw := range judicialKeywords {
		if strings.Contains(office, kw) {
			return "judicial"
		}
	}
	for _, kw := range stateKeywords {
		if strings.Contains(office, kw) {
			return "state"
		}
	}
	return "local"
}

var districtPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)DISTRICT\s+0*(\d+)`),
	regexp.MustCompile(`(?i)DIST\.?\s+0*(\d+)`),
	regexp.MustCompile(`(?i)SEAT\s+0*(\d+)`),
	regexp.MustCompile(`(?i)\(0*(\d+)\)`),
	regexp.MustCompile(`\b0*(\d+)$`),
}

// ExtractDistrict pulls a district number out of an office title.
// Returns "" when the office carries no district designator.
func ExtractDistrict(officeName string) string {
	for _, re := range districtPatterns {
		if m := re.FindStringSubmatch(officeName); m != nil {
			return m[1]
		}
	}
	return ""
}
