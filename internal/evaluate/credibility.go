// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"strings"
	"time"

	"github.com/pdiddy/deep-research/internal/websearch"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Domain-suffix base credibility. Derived from the URL alone, independent of
// the model's judgment.
var suffixBase = map[string]float64{
	".gov": 0.90,
	".edu": 0.90,
	".int": 0.85,
	".org": 0.60,
}

// knownDomains lists outlets and institutions that earn a higher base than
// their suffix alone would.
var knownDomains = map[string]float64{
	"reuters.com":        0.85,
	"apnews.com":         0.85,
	"bbc.com":            0.80,
	"nature.com":         0.90,
	"science.org":        0.90,
	"nejm.org":           0.90,
	"thelancet.com":      0.90,
	"arxiv.org":          0.75,
	"acm.org":            0.80,
	"ieee.org":           0.80,
	"oecd.org":           0.85,
	"worldbank.org":      0.85,
	"pewresearch.org":    0.80,
	"wikipedia.org":      0.65,
	"scholar.google.com": 0.70,
}

const unknownBase = 0.40

// Bonuses added on top of the domain base.
const (
	bonusAuthor  = 0.05
	bonusDate    = 0.05
	bonusRecent  = 0.10
	recentWindow = 365 * 24 * time.Hour
)

// credibility scores a source from domain heuristics plus metadata bonuses,
// capped at 1.0.
func credibility(src types.SearchResult, now time.Time) float64 {
	score := domainBase(src.URL)

	if src.Author != "" {
		score += bonusAuthor
	}
	if !src.Published.IsZero() {
		score += bonusDate
		if now.Sub(src.Published) <= recentWindow {
			score += bonusRecent
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// domainBase resolves the base credibility for a URL's host: known domains
// first, then suffix tables, then the unknown default.
func domainBase(rawURL string) float64 {
	host := websearch.NormalizeURL(rawURL)
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if host == "" {
		return unknownBase
	}

	for domain, base := range knownDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return base
		}
	}
	for suffix, base := range suffixBase {
		if strings.HasSuffix(host, suffix) {
			return base
		}
	}
	return unknownBase
}

// tierFor buckets a credibility score.
func tierFor(score float64) types.CredibilityTier {
	switch {
	case score >= 0.80:
		return types.TierHigh
	case score >= 0.55:
		return types.TierMedium
	default:
		return types.TierLow
	}
}
