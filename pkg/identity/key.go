// Package identity generates deterministic identity keys for candidates.
// The key ties a person to a contest: two filings with the same key are the
// same candidacy regardless of which jurisdiction reported them.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/ballotline/registry/pkg/normalizers"
	"github.com/pkg/errors"
)

const separator = "_"

// Key builds the identity key for a candidacy from its stable fields:
// normalized full name, normalized office, election year, and election date
// when known. Spaces become underscores so the key is safe as an external
// identifier.
func Key(fullName, officeName string, electionYear int, electionDate *time.Time) (string, error) {
	name := normalizers.NormalizeName(fullName)
	if name == "" {
		return "", errors.New("identity key requires a candidate name")
	}

	office := normalizers.NormalizeOffice(officeName)
	if office == "" {
		return "", errors.New("identity key requires an office name")
	}

	parts := []string{
		strings.ReplaceAll(name, " ", separator),
		strings.ReplaceAll(office, " ", separator),
		fmt.Sprintf("%d", electionYear),
	}
	if electionDate != nil {
		parts = append(parts, electionDate.Format("20060102"))
	}

	return strings.Join(parts, separator), nil
}

// GroupKey builds the intra-batch consolidation key. It is finer than the
// identity key: party participates so that two same-named candidates in the
// same contest under different parties never collapse into one.
func GroupKey(fullName, officeName, party string, electionDate *time.Time) string {
	parts := []string{
		normalizers.NormalizeName(fullName),
		normalizers.NormalizeOffice(officeName),
		strings.ToLower(normalizers.NormalizeParty(party)),
	}
	if electionDate != nil {
		parts = append(parts, electionDate.Format("20060102"))
	}
	return strings.Join(parts, "|")
}
