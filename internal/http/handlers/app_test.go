package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
)

func TestFailStatusMapping(t *testing.T) {
	app := &App{Logger: infra.NopLogger()}
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"credential", domain.ErrCredentialUnavailable, http.StatusPreconditionRequired, "credential_required"},
		{"selector", fmt.Errorf("open: %w", domain.ErrHostCapabilityUnavailable), http.StatusServiceUnavailable, "credential_selector_unavailable"},
		{"config", fmt.Errorf("%w: prompt is required", domain.ErrInvalidConfig), http.StatusBadRequest, "bad_request"},
		{"character", fmt.Errorf("%w: bad image", domain.ErrInvalidCharacter), http.StatusBadRequest, "bad_request"},
		{"template", fmt.Errorf("%w: name is required", domain.ErrInvalidTemplate), http.StatusBadRequest, "bad_request"},
		{"not found", fmt.Errorf("job x: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"not completed", domain.ErrJobNotCompleted, http.StatusConflict, "job_not_completed"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			app.fail(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil), tc.err)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			var body errorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.wantErr {
				t.Fatalf("code = %q, want %q", body.Error.Code, tc.wantErr)
			}
			if tc.wantCode == http.StatusInternalServerError && strings.Contains(body.Error.Message, "disk") {
				t.Fatal("internal error details leaked")
			}
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "empty body", body: ""},
		{name: "valid", body: `{"name":"kite"}`, want: "kite"},
		{name: "unknown field", body: `{"nom":"kite"}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var p payload
			err := decode(httptest.NewRecorder(), r, &p)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if p.Name != tc.want {
				t.Fatalf("Name = %q, want %q", p.Name, tc.want)
			}
		})
	}
}
