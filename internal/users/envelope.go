package users

import (
	"bytes"
	"encoding/json"
)

// envelopeKeys are tried in order; "records" is the current shape, the rest were
// used by earlier revisions of the service.
var envelopeKeys = []string{"records", "users", "data", "results"}

// decodeRecords unwraps a list response. Any unrecognised shape yields an empty
// slice rather than an error. Elements that are not a decodable record are
// dropped and counted in skipped.
func decodeRecords(raw json.RawMessage) (records []UserRecord, skipped int) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []UserRecord{}, 0
	}

	if raw[0] == '[' {
		return decodeArray(raw)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []UserRecord{}, 0
	}
	for _, key := range envelopeKeys {
		inner, ok := obj[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '[' {
			return decodeArray(inner)
		}
	}
	return []UserRecord{}, 0
}

func decodeArray(raw json.RawMessage) ([]UserRecord, int) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []UserRecord{}, 0
	}

	records := make([]UserRecord, 0, len(elems))
	skipped := 0
	for _, elem := range elems {
		var rec UserRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			skipped++
			continue
		}
		rec.normalize()
		records = append(records, rec)
	}
	return records, skipped
}
