package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Response is the envelope mutation endpoints return: a human status string, a
// message and, on newer endpoints, a boolean success flag and numeric code.
type Response struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	StatusCode FlexInt `json:"status_code,omitempty"`
	StatusBool *bool   `json:"statusbool,omitempty"`

	// Extra keeps every other key the service sent.
	Extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known keys and keeps the rest in Extra.
func (r *Response) UnmarshalJSON(data []byte) error {
	type plain Response
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range []string{"status", "message", "status_code", "statusbool"} {
		delete(all, k)
	}
	*r = Response(known)
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// Succeeded reports whether a 2xx reply accepted the request. A reply counts as
// accepted unless it says otherwise: statusbool false, or a status other than
// "success". A body carrying only a message is accepted.
func (r Response) Succeeded() bool {
	if r.StatusBool != nil && !*r.StatusBool {
		return false
	}
	if s := strings.TrimSpace(r.Status); s != "" && !strings.EqualFold(s, "success") {
		return false
	}
	return true
}

// Confirmed is the strict check used where a reply gates a privileged step:
// status must be "success" and statusbool must be present and true.
func (r Response) Confirmed() bool {
	return r.StatusBool != nil && *r.StatusBool &&
		strings.EqualFold(strings.TrimSpace(r.Status), "success")
}

// FlexInt accepts a JSON number, a numeric string or null. Anything else, such
// as an opaque string id, decodes as zero.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(n)
	} else if x, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(x)
	}
	return nil
}

// FlexBool accepts a JSON boolean, "true"/"false", 1/0 or null.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	b, err := strconv.ParseBool(strings.ToLower(s))
	*f = FlexBool(err == nil && b)
	return nil
}

// FlexString accepts a JSON string, a number or null.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}
