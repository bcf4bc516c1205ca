package research

import (
	"math"
	"net/url"
	"regexp"
	"strings"

	"rankwise/internal/extract"
	"rankwise/internal/models"
	"rankwise/internal/validation"
)

// Bundle fields looked up in completion payloads.
const (
	FieldRankingPage       = "rankingPage"
	FieldRankingPosition   = "rankingPosition"
	FieldRankingPageNumber = "rankingPageNumber"
	FieldCompetitors       = "competitors"
	FieldCompetitorURL     = "competitorUrl"
	FieldMonthlySearches   = "monthlySearches"
	FieldDailyVisitors     = "dailyVisitors"
	FieldDifficulty        = "difficulty"
)

// SignalAliases is the default alias table for research payloads.
var SignalAliases = extract.Aliases{
	FieldRankingPage:       {"rankingPage", "rankingUrl", "rankingPageUrl", "pageUrl", "url", "landingPage"},
	FieldRankingPosition:   {"rankingPosition", "position", "rank", "currentPosition", "serpPosition"},
	FieldRankingPageNumber: {"rankingPageNumber", "pageNumber", "serpPage", "resultsPage", "page"},
	FieldCompetitors:       {"competitors", "topCompetitors", "competitorUrls", "results", "domains", "urls"},
	FieldCompetitorURL:     {"url", "link", "domain", "website"},
	FieldMonthlySearches:   {"monthlySearches", "monthlySearchVolume", "searchVolume", "volume", "searches", "avgMonthlySearches"},
	FieldDailyVisitors:     {"dailyVisitors", "estimatedDailyVisitors", "visitorsPerDay", "dailyTraffic", "traffic"},
	FieldDifficulty:        {"difficulty", "keywordDifficulty", "difficultyLevel", "competition", "kd"},
}

const (
	maxPageNumber = 20
	// share of monthly searches a first-position result is assumed to receive
	firstPositionCTR = 0.32
	daysPerMonth     = 30
)

// payloadObject returns the object of a payload, unwrapping a single-item list.
func payloadObject(payload any) (map[string]any, bool) {
	switch v := payload.(type) {
	case map[string]any:
		return v, true
	case []any:
		if len(v) > 0 {
			obj, ok := v[0].(map[string]any)
			return obj, ok
		}
	}
	return nil, false
}

type rankingSignal struct {
	page       *string
	position   *int
	pageNumber *int
}

func parseRanking(aliases extract.Aliases, payload any, target *url.URL) rankingSignal {
	var r rankingSignal
	obj, ok := payloadObject(payload)
	if !ok {
		return r
	}

	if v, ok := aliases.Lookup(obj, FieldRankingPage); ok {
		if s, ok := v.(string); ok {
			if resolved, ok := validation.ResolveAgainstOrigin(s, target); ok {
				r.page = &resolved
			}
		}
	}
	if v, ok := aliases.Lookup(obj, FieldRankingPosition); ok {
		if n, ok := smallInt(v); ok && n >= 1 {
			r.position = &n
		}
	}
	if v, ok := aliases.Lookup(obj, FieldRankingPageNumber); ok {
		if n, ok := smallInt(v); ok && n >= 1 {
			n = min(n, maxPageNumber)
			r.pageNumber = &n
		}
	}
	if r.pageNumber == nil && r.position != nil {
		n := min((*r.position+9)/10, maxPageNumber)
		r.pageNumber = &n
	}
	return r
}

// notRanked matches prose stating the site has no position, such as
// "not in the top 100".
var notRanked = regexp.MustCompile(`(?i)\b(not|unranked|outside|beyond)\b`)

// smallInt parses positions and page numbers. URL-looking strings are
// ignored so a "page" key holding a link is not read as a number, and so is
// prose saying the site does not rank.
func smallInt(v any) (int, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if strings.Contains(s, "/") || notRanked.MatchString(s) {
			return 0, false
		}
	}
	n, ok := extract.ParseNumeric(v)
	if !ok || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func parseCompetitors(aliases extract.Aliases, payload any) []string {
	var items []any
	switch v := payload.(type) {
	case []any:
		items = v
	case map[string]any:
		found, ok := aliases.Lookup(v, FieldCompetitors)
		if !ok {
			return nil
		}
		items, _ = found.([]any)
	}

	candidates := make([]string, 0, len(items))
	for _, item := range items {
		switch c := item.(type) {
		case string:
			candidates = append(candidates, c)
		case map[string]any:
			if v, ok := aliases.Lookup(c, FieldCompetitorURL); ok {
				if s, ok := extract.TextValue(v); ok {
					candidates = append(candidates, s)
				}
			}
		}
	}
	return DedupeCompetitors(candidates)
}

// DedupeCompetitors trims entries, drops blanks and case-insensitive
// duplicates (keeping the first casing seen) and caps the list.
func DedupeCompetitors(candidates []string) []string {
	out := make([]string, 0, min(len(candidates), models.MaxCompetitors))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
		if len(out) == models.MaxCompetitors {
			break
		}
	}
	return out
}

func parseCount(aliases extract.Aliases, payload any, field string) *int64 {
	obj, ok := payloadObject(payload)
	if !ok {
		return nil
	}
	v, ok := aliases.Lookup(obj, field)
	if !ok {
		return nil
	}
	n, ok := extract.ParseNumeric(v)
	if !ok {
		return nil
	}
	return &n
}

func parseDifficulty(aliases extract.Aliases, payload any) *models.Difficulty {
	obj, ok := payloadObject(payload)
	if !ok {
		return nil
	}
	v, ok := aliases.Lookup(obj, FieldDifficulty)
	if !ok {
		return nil
	}
	return NormalizeDifficulty(v)
}

// NormalizeDifficulty maps a label or a 0-100 score onto the four buckets.
// Labels win over numbers found in the same string.
func NormalizeDifficulty(v any) *models.Difficulty {
	if s, ok := v.(string); ok {
		if d, ok := difficultyFromLabel(s); ok {
			return &d
		}
	}
	score, ok := extract.ParseDifficulty(v)
	if !ok {
		return nil
	}
	d := difficultyFromScore(score)
	return &d
}

func difficultyFromLabel(s string) (models.Difficulty, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "very hard"), strings.Contains(s, "very high"),
		strings.Contains(s, "very difficult"), strings.Contains(s, "extreme"):
		return models.DifficultyVeryHard, true
	case strings.Contains(s, "hard"), strings.Contains(s, "high"), strings.Contains(s, "difficult"):
		return models.DifficultyHard, true
	case strings.Contains(s, "medium"), strings.Contains(s, "moderate"):
		return models.DifficultyMedium, true
	case strings.Contains(s, "easy"), strings.Contains(s, "low"):
		return models.DifficultyEasy, true
	}
	return "", false
}

func difficultyFromScore(score int) models.Difficulty {
	switch {
	case score < 30:
		return models.DifficultyEasy
	case score < 60:
		return models.DifficultyMedium
	case score < 80:
		return models.DifficultyHard
	default:
		return models.DifficultyVeryHard
	}
}

// estimateDailyVisitors is used only when the service gave no daily figure.
func estimateDailyVisitors(monthlySearches int64) int64 {
	v := math.Round(float64(monthlySearches) * firstPositionCTR / daysPerMonth)
	return int64(math.Max(0, v))
}
