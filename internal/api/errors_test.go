package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Claim not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected code %q, got %q", ErrCodeNotFound, resp.Error.Code)
	}
	if resp.Error.Message != "Claim not found" {
		t.Errorf("expected message %q, got %q", "Claim not found", resp.Error.Message)
	}
}

func TestWriteErrorEnvelopeShape(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, context.Background(), http.StatusBadRequest, ErrCodeValidation, "text is required")

	// The envelope must nest code and message under a top-level "error" key.
	var raw map[string]map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	inner, ok := raw["error"]
	if !ok {
		t.Fatalf("expected top-level error key, got %v", raw)
	}
	if inner["code"] != ErrCodeValidation {
		t.Errorf("expected code %q, got %q", ErrCodeValidation, inner["code"])
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeMalformedIntent, http.StatusBadRequest},
		{ErrCodeUnknownAlgorithm, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeDuplicateVote, http.StatusConflict},
		{ErrCodeDuplicatePrediction, http.StatusConflict},
		{ErrCodeChallengeNotActive, http.StatusConflict},
		{ErrCodeAlreadyResolved, http.StatusConflict},
		{ErrCodeStaleRecompute, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeEvaluationUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.want {
				t.Errorf("StatusCodeMapping(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
