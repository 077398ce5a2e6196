// Package remotetest runs an in-memory stand-in for the remote user service so
// gateway, wizard and console tests can assert on the exact requests issued.
package remotetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Call is one request received by the fake service.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]string
	Auth   string
}

// Failure forces an endpoint to answer with Status and a JSON message.
type Failure struct {
	Status  int
	Message string
}

// Record is a stored account. Password and OTP are kept server-side only.
type Record struct {
	ID       int64   `json:"id"`
	RecordID string  `json:"record_id"`
	Name     string  `json:"user_name"`
	Phone    string  `json:"user_phone"`
	Email    string  `json:"user_email"`
	Type     string  `json:"user_type"`
	Role     string  `json:"user_role"`
	Status   *string `json:"status"`
	Password string  `json:"-"`
	OTP      string  `json:"-"`
}

// Server is the fake service.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  []Record
	calls    []Call
	failures map[string]Failure
	nextID   int64

	// Envelope selects the list shape: "records" (default), "users", "data",
	// "results", "bare" for a bare array or "weird" for an unrecognised object.
	Envelope string
	// OTPCode is the code issued by generate.
	OTPCode string
	// OTPStatus overrides the status string of validate_with_otp responses.
	OTPStatus string
	// Terse makes successful mutations and OTP generation answer with a bare
	// {"message": ...}, as some revisions of the service do.
	Terse bool
}

// New starts a Server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{failures: map[string]Failure{}, nextID: 1, OTPCode: "123456"}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/users", s.list)
	mux.HandleFunc("POST /user/user", s.create)
	mux.HandleFunc("PATCH /user/user", s.update)
	mux.HandleFunc("DELETE /user/user", s.delete)
	mux.HandleFunc("GET /user/validate", s.validate)
	mux.HandleFunc("PATCH /user/user/change_password", s.changePassword)
	mux.HandleFunc("POST /user/generate_user_otp", s.generateOTP)
	mux.HandleFunc("GET /user/validate_with_otp", s.validateOTP)
	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Seed stores records as if they had been created earlier.
func (s *Server) Seed(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == 0 {
			r.ID = s.nextID
			s.nextID++
		}
		if r.RecordID == "" {
			r.RecordID = fmt.Sprintf("rec-%d", r.ID)
		}
		s.records = append(s.records, r)
	}
}

// Fail makes the endpoint "METHOD /path" answer with f until cleared.
func (s *Server) Fail(endpoint string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = f
}

// Clear removes every forced failure.
func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = map[string]Failure{}
}

// Calls returns a copy of every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo filters Calls by method and path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Records returns a copy of the stored records.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Auth: r.Header.Get("Authorization")}
		raw, _ := io.ReadAll(r.Body)
		if len(bytes.TrimSpace(raw)) > 0 {
			_ = json.Unmarshal(raw, &call.Body)
		}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			writeJSON(w, f.Status, map[string]any{"status": "failure", "message": f.Message})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("user_phone")

	s.mu.Lock()
	matched := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if phone == "" || rec.Phone == phone {
			matched = append(matched, rec)
		}
	}
	envelope := s.Envelope
	s.mu.Unlock()

	switch envelope {
	case "", "records":
		writeJSON(w, http.StatusOK, map[string]any{"records": matched})
	case "bare":
		writeJSON(w, http.StatusOK, matched)
	case "weird":
		writeJSON(w, http.StatusOK, map[string]any{"items": matched})
	default:
		writeJSON(w, http.StatusOK, map[string]any{envelope: matched})
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec := Record{
		Name:     q.Get("user_name"),
		Phone:    q.Get("user_phone"),
		Email:    q.Get("user_email"),
		Type:     q.Get("user_type"),
		Role:     q.Get("user_role"),
		Password: q.Get("password"),
	}

	s.mu.Lock()
	for _, existing := range s.records {
		if existing.Phone == rec.Phone {
			s.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]any{"status": "failure", "message": "user already exists"})
			return
		}
	}
	rec.ID = s.nextID
	rec.RecordID = fmt.Sprintf("rec-%d", rec.ID)
	s.nextID++
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.ok(w, "user created", map[string]any{"record_id": rec.RecordID})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("user_phone")
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "failure", "message": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		rec := &s.records[i]
		if rec.Phone != phone {
			continue
		}
		if v, ok := body["user_name"]; ok {
			rec.Name = v
		}
		if v, ok := body["user_email"]; ok {
			rec.Email = v
		}
		if v, ok := body["user_type"]; ok {
			rec.Type = v
		}
		if v, ok := body["user_role"]; ok {
			rec.Role = v
		}
		if v, ok := body["password"]; ok {
			rec.Password = v
		}
		s.ok(w, "user updated", nil)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"status": "failure", "message": "user not found"})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("record_id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.RecordID == id || fmt.Sprint(rec.ID) == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.ok(w, "user deleted", nil)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"status": "failure", "message": "record not found"})
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, ok := s.find(q.Get("user_phone"))
	if ok && rec.Password == q.Get("password") {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "statusbool": true, "message": "valid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "failure", "statusbool": false, "message": "Invalid credentials"})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phone := q.Get("user_phone")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].Phone == phone {
			s.records[i].Password = q.Get("password")
			s.ok(w, "password changed", nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "failure", "message": "user not found"})
}

func (s *Server) generateOTP(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("user_phone")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].Phone == phone {
			s.records[i].OTP = s.OTPCode
		}
	}
	s.ok(w, "otp sent", nil)
}

func (s *Server) validateOTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, ok := s.find(q.Get("user_phone"))
	valid := ok && rec.OTP != "" && rec.OTP == q.Get("user_otp")

	s.mu.Lock()
	status := s.OTPStatus
	s.mu.Unlock()
	if status == "" {
		status = "failure"
		if valid {
			status = "success"
		}
	}

	body := map[string]any{
		"status":      status,
		"status_code": 200,
		"statusbool":  valid,
		"message":     "otp checked",
	}
	if valid {
		body["token"] = "session-token"
	}
	writeJSON(w, http.StatusOK, body)
}

// ok writes a success reply. Terse is read unlocked; set it before requests.
func (s *Server) ok(w http.ResponseWriter, message string, extra map[string]any) {
	if s.Terse {
		writeJSON(w, http.StatusOK, map[string]any{"message": message})
		return
	}
	body := map[string]any{"status": "success", "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) find(phone string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Phone == phone {
			return rec, true
		}
	}
	return Record{}, false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
