package discovery

import (
	"strings"
	"time"
)

// relevanceScore combines keyword, domain, and entity matching into a 0-100
// relevance signal.
func relevanceScore(c *Candidate, intent *QueryIntent) float64 {
	textLower := strings.ToLower(c.Text)

	keywordScore := 0.0
	if len(intent.Keywords) > 0 {
		matches := 0
		for _, kw := range intent.Keywords {
			if strings.Contains(textLower, strings.ToLower(kw)) {
				matches++
			}
		}
		keywordScore = clamp100(float64(matches) / float64(len(intent.Keywords)) * 100)
	}

	domainScore := 70.0
	if len(intent.RelatedDomains) > 0 {
		domainScore = 40.0
		for _, d := range intent.RelatedDomains {
			if strings.EqualFold(d, c.Domain) {
				domainScore = 100.0
				break
			}
		}
	}

	entityScore := 50.0
	if len(intent.KeyEntities) > 0 {
		words := make(map[string]struct{})
		for _, w := range strings.Fields(textLower) {
			words[w] = struct{}{}
		}
		matches := 0
		for _, entity := range intent.KeyEntities {
			if _, ok := words[strings.ToLower(entity)]; ok {
				matches++
			}
		}
		entityScore = clamp100(float64(matches) / float64(len(intent.KeyEntities)) * 100)
	}

	return clamp100(keywordScore*0.4 + domainScore*0.35 + entityScore*0.25)
}

// diversityScore is the per-item part of the diversity signal: perspectives
// that differ from the mainstream score higher when the query asks for
// diverse views, and cited content scores higher for expert queries. The
// set-level over-representation penalty is applied during ranking.
func diversityScore(c *Candidate, intent *QueryIntent) float64 {
	base := 50.0

	if intent.wantsPerspective("diverse") {
		if c.PerspectiveType != "mainstream" && c.PerspectiveType != "consensus" {
			base = 80.0
		}
	}
	if intent.wantsPerspective("expert") && c.HasSources {
		base = clamp100(base + 20)
	}

	annotationDiversity := c.AnnotationDiversity
	if annotationDiversity == 0 {
		annotationDiversity = 50.0
	}

	return clamp100(base*0.6 + annotationDiversity*0.4)
}

// engagementQuality scores the quality of engagement rather than its volume:
// the helpful-vote ratio across annotations plus a source-presence boost.
func engagementQuality(c *Candidate) float64 {
	if c.AnnotationCount == 0 {
		if c.HasSources {
			return 55.0
		}
		return 40.0
	}

	qualityRatio := float64(c.HelpfulVotes) / float64(c.AnnotationCount)
	score := qualityRatio * 70
	if c.HasSources {
		score += 15
	}
	return clamp100(score)
}

// recencyWeight scores content age per the query's time preference.
func recencyWeight(createdAt time.Time, timePref string, now time.Time) float64 {
	if createdAt.IsZero() {
		return 50.0
	}

	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}

	switch timePref {
	case TimeRecent:
		switch {
		case ageHours < 24:
			return 100.0
		case ageHours < 168:
			return 80.0 - (ageHours/168)*20
		default:
			return 40.0
		}
	case TimeHistorical:
		if ageHours > 30*24 {
			return 100.0 - min50(ageHours/(365*24)*50)
		}
		return 50.0
	default:
		return 100.0 - min50(ageHours/(365*24)*50)
	}
}

func min50(v float64) float64 {
	if v > 50 {
		return 50
	}
	return v
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
