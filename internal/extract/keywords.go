package extract

import (
	"rankwise/internal/models"
)

// Keyword record fields.
const (
	FieldKeyword         = "keyword"
	FieldSearchVolume    = "searchVolume"
	FieldDifficulty      = "difficulty"
	FieldDifficultyLabel = "difficultyLabel"
	FieldIntent          = "intent"
	FieldNotes           = "notes"
)

// KeywordAliases is the default alias table for keyword records.
var KeywordAliases = Aliases{
	FieldKeyword:         {"keyword", "term", "phrase", "query", "keywordPhrase", "searchTerm"},
	FieldSearchVolume:    {"searchVolume", "volume", "monthlySearchVolume", "searches", "estimatedSearchVolume", "monthlySearches", "avgMonthlySearches"},
	FieldDifficulty:      {"difficulty", "keywordDifficulty", "difficultyScore", "kd", "competition"},
	FieldDifficultyLabel: {"difficultyLabel", "difficultyLevel", "competitionLevel"},
	FieldIntent:          {"intent", "searchIntent", "userIntent"},
	FieldNotes:           {"notes", "note", "reason", "rationale", "comment"},
}

// keyword arrays are looked for under these keys, in order
var listAliases = Aliases{
	"list": {"keywords", "data"},
}

// Extractor turns assistant text into keyword records.
type Extractor struct {
	aliases Aliases
}

// NewExtractor returns an extractor using KeywordAliases extended with extra.
func NewExtractor(extra Aliases) *Extractor {
	return &Extractor{aliases: KeywordAliases.Merge(extra)}
}

var defaultExtractor = NewExtractor(nil)

// ExtractKeywordList extracts keyword records with the default alias table.
func ExtractKeywordList(text string) models.KeywordList {
	list, _ := defaultExtractor.KeywordList(text)
	return list
}

// KeywordList extracts every keyword record it can find in text. It never
// fails: unparseable text yields an empty list and the Failed outcome, and
// items without a keyword are dropped.
func (e *Extractor) KeywordList(text string) (models.KeywordList, Outcome) {
	list := models.KeywordList{Keywords: []models.KeywordRecord{}}

	payload, outcome := ParsePayload(text)
	if !outcome.OK() {
		return list, outcome
	}

	for _, item := range keywordItems(payload) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if rec, ok := e.record(obj); ok {
			list.Keywords = append(list.Keywords, rec)
		}
	}
	return list, outcome
}

func keywordItems(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		found, ok := listAliases.Lookup(v, "list")
		if !ok {
			return nil
		}
		switch inner := found.(type) {
		case []any:
			return inner
		case map[string]any:
			// {"data": {"keywords": [...]}}
			if nested, ok := inner["keywords"].([]any); ok {
				return nested
			}
		}
	}
	return nil
}

func (e *Extractor) record(obj map[string]any) (models.KeywordRecord, bool) {
	raw, _ := e.aliases.Lookup(obj, FieldKeyword)
	keyword, ok := TextValue(raw)
	if !ok {
		return models.KeywordRecord{}, false
	}

	rec := models.KeywordRecord{Keyword: keyword}

	if v, ok := e.aliases.Lookup(obj, FieldSearchVolume); ok {
		if n, ok := ParseNumeric(v); ok {
			rec.SearchVolume = &n
		}
	}

	var difficultyText *string
	if v, ok := e.aliases.Lookup(obj, FieldDifficulty); ok {
		if d, ok := ParseDifficulty(v); ok {
			rec.Difficulty = &d
		} else if s, isString := v.(string); isString {
			difficultyText = TextPtr(s)
		}
	}

	if v, ok := e.aliases.Lookup(obj, FieldDifficultyLabel); ok {
		rec.DifficultyLabel = TextPtr(v)
	}
	if rec.DifficultyLabel == nil {
		rec.DifficultyLabel = difficultyText
	}

	if v, ok := e.aliases.Lookup(obj, FieldIntent); ok {
		rec.Intent = TextPtr(v)
	}
	if v, ok := e.aliases.Lookup(obj, FieldNotes); ok {
		rec.Notes = TextPtr(v)
	}

	return rec, true
}
