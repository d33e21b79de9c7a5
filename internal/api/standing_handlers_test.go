package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/thrryv/engine/internal/standing"
)

func seedUserSnapshot(env *testEnv, userID string) {
	env.source.SetSnapshot(standing.UserSnapshot{
		UserID:                  userID,
		CreatedAt:               time.Now().AddDate(-1, 0, 0),
		ClaimsPosted:            12,
		AnnotationsAdded:        30,
		HelpfulVotesReceived:    40,
		NotHelpfulVotesReceived: 5,
		AvgClaimCredibility:     70,
		AvgOriginality:          65,
	})
}

func TestGetStanding(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	seedUserSnapshot(env, "@contributor")

	rec := env.do(t, http.MethodGet, "/users/@contributor/standing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StandingResponse
	decodeInto(t, rec, &resp)
	if resp.UserID != "@contributor" {
		t.Errorf("expected user @contributor, got %q", resp.UserID)
	}
	if resp.Tier == "" {
		t.Error("expected a standing tier")
	}
	if resp.OverallScore <= 0 {
		t.Errorf("expected positive overall score, got %v", resp.OverallScore)
	}
	if resp.Stale {
		t.Error("expected fresh standing for an unmarked user")
	}
}

func TestGetStandingStaleFlag(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	seedUserSnapshot(env, "@contributor")
	env.dirty.MarkDirty("@contributor")

	rec := env.do(t, http.MethodGet, "/users/@contributor/standing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StandingResponse
	decodeInto(t, rec, &resp)
	if !resp.Stale {
		t.Error("expected stale flag for a user pending recompute")
	}
}

func TestGetStandingUnknownUser(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	rec := env.do(t, http.MethodGet, "/users/@nobody/standing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != ErrCodeNotFound {
		t.Errorf("expected error code %q, got %q", ErrCodeNotFound, code)
	}
}
