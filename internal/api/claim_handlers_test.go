package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thrryv/engine/internal/challenge"
	"github.com/thrryv/engine/internal/claim"
	"github.com/thrryv/engine/internal/credibility"
	"github.com/thrryv/engine/internal/discovery"
	"github.com/thrryv/engine/internal/evaluator"
	"github.com/thrryv/engine/internal/idempotency"
	"github.com/thrryv/engine/internal/ledger"
	"github.com/thrryv/engine/internal/originality"
	"github.com/thrryv/engine/internal/standing"
)

// testEnv wires the full handler graph over in-memory storage.
type testEnv struct {
	repo       *claim.InMemoryRepository
	source     *standing.InMemoryDataSource
	dirty      *standing.DirtyTracker
	challenges *challenge.InMemoryRepository
	router     http.Handler
}

func newTestEnv(t *testing.T, eval evaluator.Evaluator) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := claim.NewInMemoryRepository()
	recomputer := credibility.NewRecomputer(repo, credibility.DefaultConfig(), logger)
	led := ledger.New(ledger.NewInMemoryStore(), idempotency.NewInMemoryRepository(), ledger.DefaultConfig(), logger)
	scorer := originality.NewScorer(eval, originality.DefaultConfig(), logger)
	dirty := standing.NewDirtyTracker()
	source := standing.NewInMemoryDataSource()
	classifier := standing.NewClassifier(source, standing.NewInMemoryRecordStore(), standing.DefaultConfig(), logger)
	challengeRepo := challenge.NewInMemoryRepository()
	challengeService := challenge.NewService(challengeRepo, challenge.DefaultScorerConfig(), dirty, logger)
	engine := discovery.NewEngine(discovery.DefaultTables(), logger)
	health := NewHealthHandlers(HealthHandlersConfig{})

	router := NewRouter(Handlers{
		Claims:      NewClaimHandlers(repo, recomputer, led, scorer, eval, dirty),
		Standing:    NewStandingHandlers(classifier, dirty),
		Originality: NewOriginalityHandlers(repo, scorer),
		Discovery:   NewDiscoveryHandlers(repo, engine, classifier),
		Challenges:  NewChallengeHandlers(challengeService, challengeRepo),
		Health:      health.Health,
		Ready:       health.Ready,
	})

	return &testEnv{
		repo:       repo,
		source:     source,
		dirty:      dirty,
		challenges: challengeRepo,
		router:     router,
	}
}

// goodEvaluator returns a Static evaluator whose scores qualify for a boost.
func goodEvaluator() *evaluator.Static {
	return &evaluator.Static{
		Scores: &evaluator.Scores{
			Clarity:          80,
			Originality:      80,
			Relevance:        80,
			Effort:           80,
			EvidentiaryValue: 80,
		},
		Similarity: 0.1,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeInto(t, rec, &resp)
	return resp.Error.Code
}

func (env *testEnv) createClaim(t *testing.T, text, authorID string) CreateClaimResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/claims", CreateClaimRequest{
		Text:            text,
		AuthorID:        authorID,
		ConfidenceLevel: 70,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating claim, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CreateClaimResponse
	decodeInto(t, rec, &resp)
	return resp
}

func (env *testEnv) createAnnotation(t *testing.T, claimID, authorID, text, annType string) CreateAnnotationResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/claims/"+claimID+"/annotations", CreateAnnotationRequest{
		AuthorID:       authorID,
		Text:           text,
		AnnotationType: annType,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating annotation, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CreateAnnotationResponse
	decodeInto(t, rec, &resp)
	return resp
}

func TestCreateClaim(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	resp := env.createClaim(t, "Urban tree canopy lowers summer street temperatures.", "@botanist")

	if resp.Claim == nil || resp.Claim.ID == "" {
		t.Fatal("expected created claim with an ID")
	}
	if resp.Claim.CredibilityScore != credibility.NeutralMidpoint {
		t.Errorf("expected new claim at neutral midpoint %v, got %v",
			credibility.NeutralMidpoint, resp.Claim.CredibilityScore)
	}
	if resp.Claim.TruthLabel != credibility.LabelUncertain {
		t.Errorf("expected truth label %q, got %q", credibility.LabelUncertain, resp.Claim.TruthLabel)
	}
	if resp.Boost == nil {
		t.Fatal("expected boost result")
	}
	if !resp.Boost.QualifiesForBoost || resp.Boost.Delta <= 0 {
		t.Errorf("expected qualifying boost, got %+v", resp.Boost)
	}
	if resp.Originality == nil {
		t.Error("expected originality analysis")
	}
	if !env.dirty.IsDirty("@botanist") {
		t.Error("expected author marked for standing recompute")
	}
}

func TestCreateClaimFailsOpenWithoutEvaluator(t *testing.T) {
	env := newTestEnv(t, &evaluator.Static{Err: evaluator.ErrUnavailable})

	resp := env.createClaim(t, "Cold brew has less acidity than hot-brewed coffee.", "@barista")

	if resp.Claim == nil || resp.Claim.ID == "" {
		t.Fatal("expected claim created despite evaluator outage")
	}
	if resp.Boost == nil {
		t.Fatal("expected zero-delta boost result")
	}
	if resp.Boost.Delta != 0 || resp.Boost.QualifiesForBoost {
		t.Errorf("expected zero-delta non-qualifying boost, got %+v", resp.Boost)
	}
}

func TestCreateClaimValidation(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	tests := []struct {
		name     string
		req      CreateClaimRequest
		wantCode string
	}{
		{
			name:     "missing author",
			req:      CreateClaimRequest{Text: "valid text"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "author with spaces",
			req:      CreateClaimRequest{Text: "valid text", AuthorID: "not a handle"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "uppercase domain",
			req:      CreateClaimRequest{Text: "valid text", AuthorID: "@ok", Domain: "Science"},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "empty text",
			req:      CreateClaimRequest{AuthorID: "@ok"},
			wantCode: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/claims", tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("expected error code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestCreateClaimInvalidJSON(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeBadRequest {
		t.Errorf("expected error code %q, got %q", ErrCodeBadRequest, code)
	}
}

func TestGetClaim(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Sourdough starters are stable after two weeks.", "@baker")

	rec := env.do(t, http.MethodGet, "/claims/"+created.Claim.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got claim.Claim
	decodeInto(t, rec, &got)
	if got.ID != created.Claim.ID {
		t.Errorf("expected claim %s, got %s", created.Claim.ID, got.ID)
	}
}

func TestGetClaimNotFound(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	rec := env.do(t, http.MethodGet, "/claims/no-such-claim", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeNotFound {
		t.Errorf("expected error code %q, got %q", ErrCodeNotFound, code)
	}
}

func TestDeleteClaimReversesBoost(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Migratory birds navigate by magnetoreception.", "@ornithologist")

	rec := env.do(t, http.MethodDelete, "/claims/"+created.Claim.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp DeleteClaimResponse
	decodeInto(t, rec, &resp)
	if resp.ClaimID != created.Claim.ID {
		t.Errorf("expected claim ID %s, got %s", created.Claim.ID, resp.ClaimID)
	}
	if resp.DeltaReversed != -created.Boost.Delta {
		t.Errorf("expected delta reversed %v, got %v", -created.Boost.Delta, resp.DeltaReversed)
	}

	if rec := env.do(t, http.MethodGet, "/claims/"+created.Claim.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateAnnotationRecomputesCredibility(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Fermentation temperature shapes kimchi flavor.", "@fermenter")

	resp := env.createAnnotation(t, created.Claim.ID, "@reviewer", "Peer-reviewed study agrees.", claim.TypeSupport)

	if resp.Annotation == nil || resp.Annotation.ID == "" {
		t.Fatal("expected created annotation with an ID")
	}
	if resp.Claim == nil {
		t.Fatal("expected recompute result alongside the annotation")
	}
	if resp.Claim.AnnotationCount != 1 {
		t.Errorf("expected annotation count 1, got %d", resp.Claim.AnnotationCount)
	}
	if resp.Claim.CredibilityScore <= credibility.NeutralMidpoint {
		t.Errorf("expected supporting evidence to raise the score above %v, got %v",
			credibility.NeutralMidpoint, resp.Claim.CredibilityScore)
	}
}

func TestCreateAnnotationUnknownClaim(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	rec := env.do(t, http.MethodPost, "/claims/no-such-claim/annotations", CreateAnnotationRequest{
		AuthorID:       "@reviewer",
		Text:           "some context",
		AnnotationType: claim.TypeContext,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAnnotationInvalidType(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Espresso crema indicates freshness.", "@barista")

	rec := env.do(t, http.MethodPost, "/claims/"+created.Claim.ID+"/annotations", CreateAnnotationRequest{
		AuthorID:       "@reviewer",
		Text:           "strongly agree",
		AnnotationType: "endorse",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != ErrCodeValidation {
		t.Errorf("expected error code %q, got %q", ErrCodeValidation, code)
	}
}

func TestCastVote(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Compost heat can sprout seeds in winter.", "@gardener")
	ann := env.createAnnotation(t, created.Claim.ID, "@reviewer", "Tried this, it works.", claim.TypeSupport)

	rec := env.do(t, http.MethodPost, "/annotations/"+ann.Annotation.ID+"/votes", CastVoteRequest{
		VoterID: "@voter",
		Helpful: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CastVoteResponse
	decodeInto(t, rec, &resp)
	if resp.Annotation.HelpfulVotes != 1 {
		t.Errorf("expected 1 helpful vote, got %d", resp.Annotation.HelpfulVotes)
	}
	if resp.Claim == nil {
		t.Error("expected recompute result after vote")
	}
	if !env.dirty.IsDirty("@reviewer") {
		t.Error("expected annotation author marked for standing recompute")
	}
}

func TestCastVoteDuplicate(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Rain gardens reduce street flooding.", "@planner")
	ann := env.createAnnotation(t, created.Claim.ID, "@reviewer", "City data backs this.", claim.TypeSupport)

	vote := CastVoteRequest{VoterID: "@voter", Helpful: true}
	if rec := env.do(t, http.MethodPost, "/annotations/"+ann.Annotation.ID+"/votes", vote); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first vote, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/annotations/"+ann.Annotation.ID+"/votes", vote)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeated vote, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != ErrCodeDuplicateVote {
		t.Errorf("expected error code %q, got %q", ErrCodeDuplicateVote, code)
	}
}

func TestCastVoteChange(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Standing desks change posture habits.", "@ergonomist")
	ann := env.createAnnotation(t, created.Claim.ID, "@reviewer", "Mixed evidence here.", claim.TypeContext)

	if rec := env.do(t, http.MethodPost, "/annotations/"+ann.Annotation.ID+"/votes",
		CastVoteRequest{VoterID: "@voter", Helpful: true}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first vote, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/annotations/"+ann.Annotation.ID+"/votes",
		CastVoteRequest{VoterID: "@voter", Helpful: false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for changed vote, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CastVoteResponse
	decodeInto(t, rec, &resp)
	if resp.Annotation.HelpfulVotes != 0 || resp.Annotation.NotHelpfulVotes != 1 {
		t.Errorf("expected counts swapped to 0/1, got %d/%d",
			resp.Annotation.HelpfulVotes, resp.Annotation.NotHelpfulVotes)
	}
}

func TestCastVoteUnknownAnnotation(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	rec := env.do(t, http.MethodPost, "/annotations/no-such-annotation/votes", CastVoteRequest{
		VoterID: "@voter",
		Helpful: true,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecomputeClaim(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())
	created := env.createClaim(t, "Bike lanes increase local retail revenue.", "@urbanist")
	env.createAnnotation(t, created.Claim.ID, "@reviewer", "Two city studies support this.", claim.TypeSupport)

	rec := env.do(t, http.MethodPost, "/claims/"+created.Claim.ID+"/recompute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result credibility.Result
	decodeInto(t, rec, &result)
	if result.ClaimID != created.Claim.ID {
		t.Errorf("expected result for claim %s, got %s", created.Claim.ID, result.ClaimID)
	}
	if result.AnnotationCount != 1 {
		t.Errorf("expected annotation count 1, got %d", result.AnnotationCount)
	}
}

func TestRecomputeClaimNotFound(t *testing.T) {
	env := newTestEnv(t, goodEvaluator())

	rec := env.do(t, http.MethodPost, "/claims/no-such-claim/recompute", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
