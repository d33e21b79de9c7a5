package originality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"

	"github.com/thrryv/engine/internal/evaluator"
)

// Novelty levels, most to least original.
const (
	NoveltyHighlyOriginal = "highly_original"
	NoveltyOriginal       = "original"
	NoveltySemiOriginal   = "semi_original"
	NoveltyDerivative     = "derivative"
	NoveltyDuplicate      = "duplicate"
)

// Scorer defaults.
const (
	// DefaultDuplicateThreshold is the combined similarity above which a
	// match counts as a likely duplicate.
	DefaultDuplicateThreshold = 0.75
	// DefaultModerateThreshold is the combined similarity above which a
	// match is reported at all.
	DefaultModerateThreshold = 0.55
	// DefaultHighSimilarityThreshold separates derivative from original
	// content in the novelty ladder.
	DefaultHighSimilarityThreshold = 0.70
	// DefaultBoostThreshold is the minimum originality score for a
	// discovery boost.
	DefaultBoostThreshold = 75.0
	// DefaultReviewThreshold flags very low originality for manual review.
	DefaultReviewThreshold = 30.0
	// DefaultSemanticCandidates bounds how many of the most token-similar
	// corpus items get an external semantic judgment.
	DefaultSemanticCandidates = 5
	// DefaultSemanticTimeout bounds each external similarity call.
	DefaultSemanticTimeout = 5 * time.Second
	// DefaultMatchLimit is how many similar items are returned for
	// transparency.
	DefaultMatchLimit = 3
	// DefaultCacheTTL bounds how long pairwise similarity judgments are
	// reused.
	DefaultCacheTTL = 10 * time.Minute

	tokenWeight    = 0.4
	semanticWeight = 0.6

	previewLength = 150
)

// Config holds scorer tuning.
type Config struct {
	DuplicateThreshold      float64
	ModerateThreshold       float64
	HighSimilarityThreshold float64
	BoostThreshold          float64
	ReviewThreshold         float64
	SemanticCandidates      int
	SemanticTimeout         time.Duration
	MatchLimit              int
	CacheTTL                time.Duration
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold:      DefaultDuplicateThreshold,
		ModerateThreshold:       DefaultModerateThreshold,
		HighSimilarityThreshold: DefaultHighSimilarityThreshold,
		BoostThreshold:          DefaultBoostThreshold,
		ReviewThreshold:         DefaultReviewThreshold,
		SemanticCandidates:      DefaultSemanticCandidates,
		SemanticTimeout:         DefaultSemanticTimeout,
		MatchLimit:              DefaultMatchLimit,
		CacheTTL:                DefaultCacheTTL,
	}
}

// CorpusItem is one existing claim the new text is compared against.
type CorpusItem struct {
	ClaimID         string
	AuthorID        string
	Text            string
	CreatedAt       time.Time
	AnnotationCount int
}

// Match is a similar corpus item reported for transparency.
type Match struct {
	ClaimID         string    `json:"claim_id"`
	AuthorID        string    `json:"author_id"`
	TextPreview     string    `json:"text_preview"`
	Similarity      float64   `json:"similarity"`
	CreatedAt       time.Time `json:"created_at"`
	AnnotationCount int       `json:"annotation_count"`
}

// Analysis is the result of scoring one text against the corpus window.
type Analysis struct {
	OriginalityScore float64   `json:"originality_score"`
	NoveltyLevel     string    `json:"novelty_level"`
	IsBoosted        bool      `json:"is_boosted"`
	FlaggedForReview bool      `json:"flagged_for_review"`
	Similar          []Match   `json:"similar"`
	ComputedAt       time.Time `json:"computed_at"`
}

// Scorer computes originality analyses. Semantic judgments go through the
// external evaluator with a per-call timeout; when that fails the scorer
// degrades to a keyword heuristic instead of failing the caller.
type Scorer struct {
	judge  evaluator.Evaluator
	config Config
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewScorer creates an originality scorer. judge may be nil, in which case
// only the keyword fallback is used.
func NewScorer(judge evaluator.Evaluator, config Config, logger *slog.Logger) *Scorer {
	if config.SemanticCandidates <= 0 {
		config.SemanticCandidates = DefaultSemanticCandidates
	}
	if config.SemanticTimeout <= 0 {
		config.SemanticTimeout = DefaultSemanticTimeout
	}
	if config.MatchLimit <= 0 {
		config.MatchLimit = DefaultMatchLimit
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		judge:  judge,
		config: config,
		cache:  gocache.New(config.CacheTTL, 2*config.CacheTTL),
		logger: logger,
	}
}

type scoredItem struct {
	item     CorpusItem
	token    float64
	combined float64
}

// Score analyzes the text against the corpus window. An empty corpus means
// fully original.
func (s *Scorer) Score(ctx context.Context, text string, corpus []CorpusItem) (*Analysis, error) {
	scored := make([]scoredItem, 0, len(corpus))
	for _, item := range corpus {
		scored = append(scored, scoredItem{
			item:  item,
			token: TokenSimilarity(text, item.Text),
		})
	}

	// Only the most token-similar candidates get an external semantic
	// judgment; everything else keeps the cheap keyword heuristic.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].token > scored[j].token
	})

	for i := range scored {
		semantic := s.semanticSimilarity(ctx, text, scored[i].item.Text, i < s.config.SemanticCandidates)
		scored[i].combined = clampUnit(tokenWeight*scored[i].token + semanticWeight*semantic)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].combined > scored[j].combined
	})

	var matches []Match
	var maxCombined float64
	hasDuplicate := false
	hasHighSimilarity := false
	for _, sc := range scored {
		if sc.combined > maxCombined {
			maxCombined = sc.combined
		}
		if sc.combined > s.config.DuplicateThreshold {
			hasDuplicate = true
		}
		if sc.combined > s.config.HighSimilarityThreshold {
			hasHighSimilarity = true
		}
		if sc.combined >= s.config.ModerateThreshold {
			matches = append(matches, Match{
				ClaimID:         sc.item.ClaimID,
				AuthorID:        sc.item.AuthorID,
				TextPreview:     preview(sc.item.Text),
				Similarity:      sc.combined,
				CreatedAt:       sc.item.CreatedAt,
				AnnotationCount: sc.item.AnnotationCount,
			})
		}
	}
	if len(matches) > s.config.MatchLimit {
		matches = matches[:s.config.MatchLimit]
	}

	score := 100.0 * (1.0 - maxCombined)
	if score < 0 {
		score = 0
	}

	level := s.noveltyLevel(score, hasDuplicate, hasHighSimilarity)

	analysis := &Analysis{
		OriginalityScore: score,
		NoveltyLevel:     level,
		IsBoosted:        score >= s.config.BoostThreshold && (level == NoveltyHighlyOriginal || level == NoveltyOriginal),
		FlaggedForReview: score < s.config.ReviewThreshold || hasDuplicate,
		Similar:          matches,
		ComputedAt:       time.Now(),
	}

	s.logger.Debug("originality scored",
		"originality_score", analysis.OriginalityScore,
		"novelty_level", analysis.NoveltyLevel,
		"matches", len(analysis.Similar),
		"corpus_size", len(corpus))

	return analysis, nil
}

// semanticSimilarity returns the external judgment for candidate pairs and
// the keyword heuristic otherwise. External failures degrade to the
// heuristic.
func (s *Scorer) semanticSimilarity(ctx context.Context, a, b string, external bool) float64 {
	if !external || s.judge == nil {
		return keywordSimilarity(a, b)
	}

	key := pairKey(a, b)
	if cached, found := s.cache.Get(key); found {
		return cached.(float64)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.SemanticTimeout)
	defer cancel()

	similarity, err := s.judge.JudgeSimilarity(callCtx, a, b)
	if err != nil {
		if !errors.Is(err, evaluator.ErrUnavailable) {
			s.logger.Warn("semantic similarity judgment failed", "error", err)
		}
		return keywordSimilarity(a, b)
	}

	similarity = clampUnit(similarity)
	s.cache.Set(key, similarity, s.config.CacheTTL)
	return similarity
}

// noveltyLevel maps the score and similarity context to a descriptive band.
func (s *Scorer) noveltyLevel(score float64, hasDuplicate, hasHighSimilarity bool) string {
	if hasDuplicate {
		return NoveltyDuplicate
	}
	switch {
	case score >= 85:
		return NoveltyHighlyOriginal
	case score >= 70 && !hasHighSimilarity:
		return NoveltyOriginal
	case score >= 50 && !hasHighSimilarity:
		return NoveltySemiOriginal
	case hasHighSimilarity:
		return NoveltyDerivative
	default:
		return NoveltyOriginal
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%.60s|%d:%.60s", len(a), a, len(b), b)
}

// preview truncates to previewLength bytes without splitting a rune.
func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
