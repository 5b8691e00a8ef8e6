package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warin-ch/mediq/libs/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: role,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestRequireRole(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	h := v.RequireRole(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, "admin")

	req := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "patient-1", "patient"))
	rw := httptest.NewRecorder()
	h(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	reqOK.Header.Set("Authorization", "Bearer "+signToken(t, "admin-1", "admin"))
	rwOK := httptest.NewRecorder()
	h(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rwOK.Code)
	}

	reqNoTok := httptest.NewRequest(http.MethodPost, "http://example.com", nil)
	rwNoTok := httptest.NewRecorder()
	h(rwNoTok, reqNoTok)
	if rwNoTok.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rwNoTok.Code)
	}
}

// Validation rejects bad input before any storage call, so a nil repo is safe.
func TestCreateValidation(t *testing.T) {
	h := New(nil, nil, slog.New(slog.DiscardHandler))

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing fields", `{"name":"Dr. Aom"}`},
		{"zero fee", `{"name":"Dr. Aom","email":"aom@clinic.test","speciality":"dermatology","fee_minor":0}`},
		{"negative fee", `{"name":"Dr. Aom","email":"aom@clinic.test","speciality":"dermatology","fee_minor":-100}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/admin/doctors", strings.NewReader(tc.body))
		rw := httptest.NewRecorder()
		h.Create(rw, req)
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rw.Code)
		}
	}
}

func TestUpdateFeeValidation(t *testing.T) {
	h := New(nil, nil, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/admin/doctors/fee", strings.NewReader(`{"doctor_id":"doc-1","fee_minor":0}`))
	rw := httptest.NewRecorder()
	h.UpdateFee(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero fee, got %d", rw.Code)
	}
}
