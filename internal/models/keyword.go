package models

// KeywordRecord is a single keyword idea recovered from assistant text.
// Every field except Keyword is optional; nil means the model did not
// provide a usable value, never zero.
type KeywordRecord struct {
	Keyword         string  `json:"keyword"`
	SearchVolume    *int64  `json:"searchVolume"`
	Difficulty      *int    `json:"difficulty"`
	DifficultyLabel *string `json:"difficultyLabel"`
	Intent          *string `json:"intent"`
	Notes           *string `json:"notes"`
}

// KeywordList is the result of keyword extraction. Keywords is never nil.
type KeywordList struct {
	Keywords []KeywordRecord `json:"keywords"`
}
