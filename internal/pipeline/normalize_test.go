package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medahead/targeting-cli/internal/model"
)

func row(name, email, company string) model.RawContactRow {
	return model.RawContactRow{"name": name, "email": email, "company": company}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		rows         []model.RawContactRow
		wantAccepted int
		wantReasons  []model.RejectReason
	}{
		{
			name: "all valid",
			rows: []model.RawContactRow{
				row("Alice", "alice@medcorp.com", "MedCorp"),
				row("Bob", "bob@healthsys.org", "HealthSys"),
			},
			wantAccepted: 2,
		},
		{
			name: "invalid email and duplicate",
			rows: []model.RawContactRow{
				row("Alice", "alice@medcorp.com", "MedCorp"),
				row("Bob", "not-an-email", "HealthSys"),
				row("Alice Again", "ALICE@medcorp.com", "MedCorp"),
			},
			wantAccepted: 1,
			wantReasons:  []model.RejectReason{model.RejectInvalidEmail, model.RejectDuplicate},
		},
		{
			name: "missing required fields",
			rows: []model.RawContactRow{
				{"name": "", "email": "a@b.com", "company": "X"},
				{"name": "A", "email": "", "company": "X"},
				{"name": "A", "email": "a@b.com", "company": "   "},
			},
			wantAccepted: 0,
			wantReasons: []model.RejectReason{
				model.RejectMissingField, model.RejectMissingField, model.RejectMissingField,
			},
		},
		{
			name:         "empty input",
			rows:         nil,
			wantAccepted: 0,
		},
		{
			name: "email without domain dot",
			rows: []model.RawContactRow{
				row("A", "a@localhost", "X"),
			},
			wantAccepted: 0,
			wantReasons:  []model.RejectReason{model.RejectInvalidEmail},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.rows)

			assert.Len(t, res.Accepted, tt.wantAccepted)
			require.Len(t, res.Rejected, len(tt.wantReasons))
			for i, want := range tt.wantReasons {
				assert.Equal(t, want, res.Rejected[i].Reason)
			}

			// Every input row is accounted for exactly once.
			assert.Equal(t, len(tt.rows), len(res.Accepted)+len(res.Rejected))
		})
	}
}

func TestNormalize_IndustryDefault(t *testing.T) {
	r := row("Alice", "alice@medcorp.com", "MedCorp")
	res := Normalize([]model.RawContactRow{r})
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "Unknown", res.Accepted[0].Industry)

	r["industry"] = "  Digital Health "
	res = Normalize([]model.RawContactRow{r})
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "Digital Health", res.Accepted[0].Industry)
}

func TestNormalize_DedupeKeepsFirst(t *testing.T) {
	res := Normalize([]model.RawContactRow{
		row("First", "dup@medcorp.com", "CompanyA"),
		row("Second", "Dup@MedCorp.com", "CompanyB"),
	})

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "First", res.Accepted[0].Name)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, model.RejectDuplicate, res.Rejected[0].Reason)
	assert.Equal(t, 1, res.Rejected[0].Index)
}

func TestNormalize_DeterministicIDs(t *testing.T) {
	rows := []model.RawContactRow{row("Alice", "alice@medcorp.com", "MedCorp")}

	first := Normalize(rows)
	second := Normalize(rows)

	require.Len(t, first.Accepted, 1)
	assert.Equal(t, first.Accepted[0].ID, second.Accepted[0].ID)
	assert.Equal(t, model.ContactID("alice@medcorp.com"), first.Accepted[0].ID)
}

func TestNormalize_StripsControlCharacters(t *testing.T) {
	res := Normalize([]model.RawContactRow{
		row("Ali\x00ce\t", " alice@medcorp.com ", "Med\aCorp"),
	})

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "Alice", res.Accepted[0].Name)
	assert.Equal(t, "alice@medcorp.com", res.Accepted[0].Email)
	assert.Equal(t, "MedCorp", res.Accepted[0].Company)
}
