package discovery

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/thrryv/engine/internal/standing"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"relevance", AlgorithmRelevance, false},
		{"diversity", AlgorithmDiversity, false},
		{"emergent", AlgorithmEmergent, false},
		{"standing_aware", AlgorithmStandingAware, false},
		{"viral", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestQueryIntentValidate(t *testing.T) {
	tests := []struct {
		name    string
		intent  QueryIntent
		wantErr bool
	}{
		{"topic only", QueryIntent{CoreTopic: "solar"}, false},
		{"keywords only", QueryIntent{Keywords: []string{"solar"}}, false},
		{"valid time pref", QueryIntent{CoreTopic: "x", TimePreference: TimeRecent}, false},
		{"empty", QueryIntent{}, true},
		{"bad time pref", QueryIntent{CoreTopic: "x", TimePreference: "tomorrow"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFallbackIntent(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantTimePref string
	}{
		{"recent", "new claims about fusion lately", TimeRecent},
		{"historical", "what happened in past decades", TimeHistorical},
		{"neutral", "solar panel efficiency", TimeAnytime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := FallbackIntent(tt.query)
			if intent.TimePreference != tt.wantTimePref {
				t.Errorf("TimePreference = %q, want %q", intent.TimePreference, tt.wantTimePref)
			}
			if len(intent.Keywords) == 0 {
				t.Error("fallback intent should carry keywords")
			}
			if len(intent.PerspectivePreferences) == 0 {
				t.Error("fallback intent should carry perspective preferences")
			}
			if intent.Validate() != nil {
				t.Error("fallback intent must always be valid")
			}
		})
	}
}

func TestRelevanceScore(t *testing.T) {
	candidate := &Candidate{
		Text:   "Solar panel efficiency improved by twenty percent this decade",
		Domain: "energy",
	}

	t.Run("keyword and domain match", func(t *testing.T) {
		intent := &QueryIntent{
			Keywords:       []string{"solar", "efficiency"},
			RelatedDomains: []string{"energy"},
		}
		got := relevanceScore(candidate, intent)
		// Full keyword match (40) + domain match (35) + neutral-ish entities.
		if got < 75 {
			t.Errorf("relevanceScore = %v, want >= 75 for strong match", got)
		}
	})

	t.Run("no match", func(t *testing.T) {
		intent := &QueryIntent{
			Keywords:       []string{"basketball"},
			RelatedDomains: []string{"sports"},
		}
		got := relevanceScore(candidate, intent)
		if got > 30 {
			t.Errorf("relevanceScore = %v, want <= 30 for unrelated query", got)
		}
	})
}

func TestEngagementQuality(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want float64
	}{
		{"no annotations", Candidate{}, 40},
		{"no annotations with sources", Candidate{HasSources: true}, 55},
		{"well received", Candidate{AnnotationCount: 4, HelpfulVotes: 4}, 70},
		{"well received with sources", Candidate{AnnotationCount: 4, HelpfulVotes: 4, HasSources: true}, 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engagementQuality(&tt.c); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("engagementQuality() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecencyWeight(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		age      time.Duration
		timePref string
		want     float64
	}{
		{"fresh under recent pref", 2 * time.Hour, TimeRecent, 100},
		{"stale under recent pref", 30 * 24 * time.Hour, TimeRecent, 40},
		{"old under historical pref", 60 * 24 * time.Hour, TimeHistorical, 100 - 60.0/365*50},
		{"new under historical pref", 24 * time.Hour, TimeHistorical, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recencyWeight(now.Add(-tt.age), tt.timePref, now)
			if math.Abs(got-tt.want) > 0.1 {
				t.Errorf("recencyWeight() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("zero time reads neutral", func(t *testing.T) {
		if got := recencyWeight(time.Time{}, TimeAnytime, now); got != 50 {
			t.Errorf("recencyWeight(zero) = %v, want 50", got)
		}
	})
}

func TestRankStandingAwareSoftBoost(t *testing.T) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{Keywords: []string{"solar"}, CoreTopic: "solar"}

	now := time.Now()
	candidates := []Candidate{
		{
			ClaimID:             "emerging-claim",
			AuthorID:            "newcomer",
			Text:                "solar output rose again",
			CreatedAt:           now,
			OriginalityScore:    70,
			OriginalityKnown:    true,
			AuthorTier:          standing.TierEmerging,
			AuthorStandingScore: 30,
		},
		{
			ClaimID:             "trusted-claim",
			AuthorID:            "veteran",
			Text:                "solar output rose again",
			CreatedAt:           now,
			OriginalityScore:    70,
			OriginalityKnown:    true,
			AuthorTier:          standing.TierTrusted,
			AuthorStandingScore: 95,
		},
	}

	results, err := e.Rank(intent, candidates, AlgorithmStandingAware, Options{})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ClaimID != "trusted-claim" {
		t.Errorf("top result = %s, want trusted author's claim", results[0].ClaimID)
	}
	// Soft boost, not a filter: the emerging author still appears with a
	// non-zero score.
	if results[1].ClaimID != "emerging-claim" || results[1].CompositeScore <= 0 {
		t.Errorf("emerging claim = %+v, want present with non-zero score", results[1])
	}
	if results[1].ReachMultiplier < 0.8 {
		t.Errorf("reach multiplier = %v, want >= 0.8", results[1].ReachMultiplier)
	}
}

func TestRankMalformedIntent(t *testing.T) {
	e := NewEngine(nil, nil)
	_, err := e.Rank(&QueryIntent{}, nil, AlgorithmRelevance, Options{})
	if !errors.Is(err, ErrMalformedIntent) {
		t.Errorf("Rank() error = %v, want ErrMalformedIntent", err)
	}
}

func TestRankUnknownAlgorithm(t *testing.T) {
	e := NewEngine(nil, nil)
	_, err := e.Rank(&QueryIntent{CoreTopic: "x"}, nil, Algorithm("viral"), Options{})
	if !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("Rank() error = %v, want ErrUnknownAlgorithm", err)
	}
}

func TestRankTieBreakByRecency(t *testing.T) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{Keywords: []string{"tide"}, CoreTopic: "tide"}

	now := time.Now()
	candidates := []Candidate{
		{ClaimID: "older", Text: "tide tables updated", CreatedAt: now.Add(-2 * time.Hour), OriginalityScore: 60, OriginalityKnown: true},
		{ClaimID: "newer", Text: "tide tables updated", CreatedAt: now.Add(-1 * time.Hour), OriginalityScore: 60, OriginalityKnown: true},
	}

	results, err := e.Rank(intent, candidates, AlgorithmRelevance, Options{})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if results[0].ClaimID != "newer" {
		t.Errorf("top result = %s, want the newer claim on a tie", results[0].ClaimID)
	}
}

func TestRankOriginalityDegradation(t *testing.T) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{Keywords: []string{"glacier"}, CoreTopic: "glacier"}

	now := time.Now()
	known := Candidate{
		ClaimID: "known", Text: "glacier retreat accelerates",
		CreatedAt: now, OriginalityScore: 80, OriginalityKnown: true,
	}
	unknown := Candidate{
		ClaimID: "unknown", Text: "glacier retreat accelerates",
		CreatedAt: now, OriginalityKnown: false,
	}

	results, err := e.Rank(intent, []Candidate{known, unknown}, AlgorithmEmergent, Options{})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	var unknownResult *Result
	for i := range results {
		if results[i].ClaimID == "unknown" {
			unknownResult = &results[i]
		}
	}
	if unknownResult == nil {
		t.Fatal("claim with unavailable originality missing from results")
	}
	if unknownResult.SubScores.Originality != 0 {
		t.Errorf("originality sub-score = %v, want 0 when unavailable", unknownResult.SubScores.Originality)
	}
	// Redistribution keeps the claim competitive instead of zeroing the
	// originality share of its composite.
	if unknownResult.CompositeScore < 30 {
		t.Errorf("composite = %v, want the degraded claim to stay competitive", unknownResult.CompositeScore)
	}
}

func TestRankDiversityPenalizesClustering(t *testing.T) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{
		Keywords:               []string{"markets"},
		CoreTopic:              "markets",
		PerspectivePreferences: []string{"diverse"},
	}

	now := time.Now()
	candidates := []Candidate{
		{ClaimID: "m1", Text: "markets rallied", PerspectiveType: "mainstream", CreatedAt: now, OriginalityScore: 60, OriginalityKnown: true},
		{ClaimID: "m2", Text: "markets rallied", PerspectiveType: "mainstream", CreatedAt: now, OriginalityScore: 60, OriginalityKnown: true},
		{ClaimID: "m3", Text: "markets rallied", PerspectiveType: "mainstream", CreatedAt: now, OriginalityScore: 60, OriginalityKnown: true},
		{ClaimID: "c1", Text: "markets rallied", PerspectiveType: "contrarian", CreatedAt: now, OriginalityScore: 60, OriginalityKnown: true},
	}

	results, err := e.Rank(intent, candidates, AlgorithmDiversity, Options{DiversityPreference: 1.0})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if results[0].ClaimID != "c1" {
		t.Errorf("top result = %s, want the distinct perspective", results[0].ClaimID)
	}
}

func TestRankLimit(t *testing.T) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{Keywords: []string{"x"}, CoreTopic: "x"}

	candidates := make([]Candidate, 30)
	for i := range candidates {
		candidates[i] = Candidate{ClaimID: string(rune('a' + i)), Text: "x", CreatedAt: time.Now(), OriginalityKnown: true}
	}

	results, err := e.Rank(intent, candidates, AlgorithmRelevance, Options{Limit: 5})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

func BenchmarkRank(b *testing.B) {
	e := NewEngine(nil, nil)
	intent := &QueryIntent{
		Keywords:       []string{"solar", "efficiency"},
		CoreTopic:      "solar efficiency",
		RelatedDomains: []string{"energy"},
	}

	candidates := make([]Candidate, 200)
	now := time.Now()
	for i := range candidates {
		candidates[i] = Candidate{
			ClaimID:             "claim",
			Text:                "solar panel efficiency improved again this year",
			Domain:              "energy",
			CreatedAt:           now.Add(-time.Duration(i) * time.Hour),
			AnnotationCount:     i % 7,
			HelpfulVotes:        i % 5,
			OriginalityScore:    float64(i % 100),
			OriginalityKnown:    true,
			AuthorTier:          standing.TierConsistent,
			AuthorStandingScore: float64(i % 100),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Rank(intent, candidates, AlgorithmStandingAware, Options{Limit: 20}); err != nil {
			b.Fatal(err)
		}
	}
}
