package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseSucceeded(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"flag and status agree", `{"status":"success","statusbool":true}`, true},
		{"flag false", `{"status":"success","statusbool":false}`, false},
		{"status says failure", `{"status":"failure","statusbool":true}`, false},
		{"status only", `{"status":"Success","message":"ok"}`, true},
		{"flag only", `{"statusbool":true}`, true},
		{"message only", `{"message":"User created"}`, true},
		{"empty body", `{}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tc.body), &r))
			assert.Equal(t, tc.want, r.Succeeded())
		})
	}
}

func TestResponseKeepsExtraKeys(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"status":"success","status_code":"200","token":"abc","records":[]}`), &r))
	assert.EqualValues(t, 200, r.StatusCode)
	require.Contains(t, r.Extra, "token")
	assert.JSONEq(t, `"abc"`, string(r.Extra["token"]))
	assert.NotContains(t, r.Extra, "status")
}

func TestFlexValues(t *testing.T) {
	var v struct {
		A FlexInt    `json:"a"`
		B FlexInt    `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
		E FlexInt    `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"34","c":"rec-1","d":99,"e":null}`), &v))
	assert.EqualValues(t, 12, v.A)
	assert.EqualValues(t, 34, v.B)
	assert.EqualValues(t, "rec-1", v.C)
	assert.EqualValues(t, "99", v.D)
	assert.Zero(t, v.E)

	require.NoError(t, json.Unmarshal([]byte(`{"a":"abc-1","b":7.0}`), &v))
	assert.Zero(t, v.A)
	assert.EqualValues(t, 7, v.B)
}

func TestResponseConfirmed(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"both", `{"status":"success","statusbool":true}`, true},
		{"status without flag", `{"status":"success"}`, false},
		{"flag with failed status", `{"status":"failed","statusbool":true}`, false},
		{"flag false", `{"status":"success","statusbool":false}`, false},
		{"message only", `{"message":"ok"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r Response
			require.NoError(t, json.Unmarshal([]byte(tc.body), &r))
			assert.Equal(t, tc.want, r.Confirmed())
		})
	}
}

func TestFlexBool(t *testing.T) {
	var v struct {
		A FlexBool `json:"a"`
		B FlexBool `json:"b"`
		C FlexBool `json:"c"`
		D FlexBool `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":"true","c":1,"d":"nope"}`), &v))
	assert.True(t, bool(v.A))
	assert.True(t, bool(v.B))
	assert.True(t, bool(v.C))
	assert.False(t, bool(v.D))
}
