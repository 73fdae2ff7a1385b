package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertBuilder_OnConflictBuildsUpsert(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("candidates")
	ib.Cols("id", "state_code", "identity_key", "party")
	ib.Values("c1", "NC", "john_smith_us_senate_2024", "Democratic")
	ib.OnConflict([]string{"state_code", "identity_key"}, Excluded("party"), Excluded("updated_at"))

	query, args := ib.Build()
	assert.Contains(t, query, "INSERT INTO candidates")
	assert.Contains(t, query, "ON CONFLICT (state_code, identity_key) DO UPDATE SET party = EXCLUDED.party, updated_at = EXCLUDED.updated_at")
	assert.Contains(t, query, "$1")
	assert.Len(t, args, 4)
}

func TestInsertBuilder_OnConflictDoNothing(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("candidates")
	ib.Cols("id")
	ib.Values("c1")
	ib.OnConflictDoNothing()

	query, _ := ib.Build()
	assert.Contains(t, query, "ON CONFLICT DO NOTHING")
}

func TestSelectBuilder_UsesPostgresPlaceholders(t *testing.T) {
	sb := NewSelectBuilder()
	sb.Select("id")
	sb.From("candidates")
	sb.Where(sb.Equal("state_code", "NC"))

	query, args := sb.Build()
	assert.Contains(t, query, "state_code = $1")
	assert.Equal(t, []interface{}{"NC"}, args)
}

func TestExcluded(t *testing.T) {
	assert.Equal(t, "contact = EXCLUDED.contact", Excluded("contact"))
}
