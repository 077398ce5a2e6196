package users

import "strings"

// Search returns the records whose display fields contain q, ignoring case. An
// empty query returns records unchanged.
func Search(records []UserRecord, q string) []UserRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return records
	}

	out := make([]UserRecord, 0, len(records))
	for _, r := range records {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r UserRecord, q string) bool {
	for _, field := range []string{
		string(r.RecordID),
		r.Name,
		r.Email,
		r.Phone,
		r.Type,
		r.Role,
		r.Status,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
