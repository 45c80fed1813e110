// Package pipeline implements the contact triage pipeline: normalize
// uploaded rows, score them against the user profile, derive a meeting
// plan, and aggregate dashboard stats.
package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/medahead/targeting-cli/internal/model"
)

// emailPattern is deliberately conservative: local part, one @, and a
// domain with at least one dot. Full RFC 5322 validation rejects too
// little and accepts addresses no conference export actually contains.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// requiredColumns must be present and non-empty for a row to be accepted.
var requiredColumns = []string{"name", "email", "company"}

// NormalizeResult pairs the accepted contacts with the rows that were
// dropped. len(Accepted) + len(Rejected) always equals the input length.
type NormalizeResult struct {
	Accepted []model.Contact
	Rejected []model.RejectedRow
}

// Normalize converts raw upload rows into validated contacts. Rows
// missing a required column or carrying an invalid email are rejected;
// duplicate emails keep the first occurrence. Rejections never abort
// the batch. The transformation is pure and idempotent.
func Normalize(rows []model.RawContactRow) NormalizeResult {
	res := NormalizeResult{
		Accepted: make([]model.Contact, 0, len(rows)),
	}

	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		reject := func(reason model.RejectReason) {
			res.Rejected = append(res.Rejected, model.RejectedRow{
				Index:  i,
				Reason: reason,
				Raw:    row,
			})
		}

		missing := false
		for _, col := range requiredColumns {
			if strings.TrimSpace(row[col]) == "" {
				missing = true
				break
			}
		}
		if missing {
			reject(model.RejectMissingField)
			continue
		}

		email := cleanField(row["email"])
		if !emailPattern.MatchString(email) {
			reject(model.RejectInvalidEmail)
			continue
		}

		dedupeKey := strings.ToLower(email)
		if _, dup := seen[dedupeKey]; dup {
			reject(model.RejectDuplicate)
			continue
		}
		seen[dedupeKey] = struct{}{}

		industry := cleanField(row["industry"])
		if industry == "" {
			industry = "Unknown"
		}

		res.Accepted = append(res.Accepted, model.Contact{
			ID:       model.ContactID(email),
			Name:     cleanField(row["name"]),
			Email:    email,
			Company:  cleanField(row["company"]),
			Title:    cleanField(row["title"]),
			Industry: industry,
		})
	}

	return res
}

// cleanField trims whitespace, applies NFC normalization, and strips
// control characters that occasionally survive spreadsheet exports.
func cleanField(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
