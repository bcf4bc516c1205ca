package models

// Difficulty is the ranking difficulty bucket of a keyword.
type Difficulty string

// Difficulty buckets
const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very hard"
)

// MaxCompetitors caps the competitor list of a bundle.
const MaxCompetitors = 10

// ResearchBundle merges every recovered signal for one (target URL, keyword) pair.
type ResearchBundle struct {
	Keyword           string      `json:"keyword"`
	RankingPage       *string     `json:"rankingPage"`
	RankingPosition   *int        `json:"rankingPosition"`
	RankingPageNumber *int        `json:"rankingPageNumber"`
	MonthlySearches   *int64      `json:"monthlySearches"`
	DailyVisitors     *int64      `json:"dailyVisitors"`
	TopCompetitors    []string    `json:"topCompetitors"`
	Difficulty        *Difficulty `json:"difficulty"`
}

// IsEmpty reports whether no signal at all was recovered for the bundle.
func (b *ResearchBundle) IsEmpty() bool {
	return b.RankingPage == nil &&
		b.RankingPosition == nil &&
		b.RankingPageNumber == nil &&
		b.MonthlySearches == nil &&
		b.DailyVisitors == nil &&
		len(b.TopCompetitors) == 0 &&
		b.Difficulty == nil
}

// KeywordError reports a keyword of a batch that produced no bundle.
type KeywordError struct {
	Keyword string `json:"keyword"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// ResearchBatch is the ordered output of a batch analysis.
type ResearchBatch struct {
	TargetURL string           `json:"targetUrl"`
	Results   []ResearchBundle `json:"results"`
	Errors    []KeywordError   `json:"errors"`
}
