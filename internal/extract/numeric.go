package extract

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxNumeric is the upper bound applied to every parsed count.
const MaxNumeric = 10_000_000_000

// MaxDifficulty is the upper bound of a difficulty score.
const MaxDifficulty = 100

var (
	suffixedNumber = regexp.MustCompile(`(?i)(-?\d[\d,]*(?:\.\d+)?)\s*(thousand|million|billion|bn|k|m|b)?\b`)
	digitRun       = regexp.MustCompile(`-?\d[\d,.]*`)
	negationWord   = regexp.MustCompile(`(?i)\b(no|none|zero)\b`)
	wordBoundary   = regexp.MustCompile(`[^a-z0-9]+`)
)

var scaleSuffixes = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

var unitWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
}

var teenWords = map[string]float64{
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]float64{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var scaleWords = map[string]float64{
	"thousand": 1e3,
	"million":  1e6,
	"billion":  1e9,
}

// ParseNumeric interprets a model-provided value as a non-negative count.
//
// Numbers are used directly. Strings are tried as suffixed digits ("25k",
// "1.2 million"), then as spelled-out words ("twenty-five thousand"), then as
// the first digit run anywhere in the text. Text containing only a negation
// word ("no searches") is zero. Anything else is not found, which callers
// must treat as unknown rather than zero.
//
// Results are clamped to [0, MaxNumeric] and rounded.
func ParseNumeric(v any) (int64, bool) {
	f, ok := numericValue(v)
	if !ok {
		return 0, false
	}
	return int64(math.Round(clamp(f, 0, MaxNumeric))), true
}

// ParseDifficulty interprets a value as a 0-100 difficulty score. Strings
// use the first digit run, as ParseNumeric does.
func ParseDifficulty(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case string:
		m := digitRun.FindString(val)
		if m == "" {
			return 0, false
		}
		parsed, ok := parseDigits(m)
		if !ok {
			return 0, false
		}
		f = parsed
	default:
		n, ok := numberValue(v)
		if !ok {
			return 0, false
		}
		f = n
	}
	return int(math.Round(clamp(f, 0, MaxDifficulty))), true
}

func numericValue(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		return parseNumericText(s)
	}
	return numberValue(v)
}

// numberValue converts the numeric types produced by JSON decoding and by
// callers. Strings are not accepted here. Out-of-range magnitudes come back
// as infinities and are left for the caller to clamp.
func numberValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseNumericText(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	if m := suffixedNumber.FindStringSubmatch(text); m != nil {
		if f, ok := parseDigits(m[1]); ok {
			if mult, ok := scaleSuffixes[strings.ToLower(m[2])]; ok {
				f *= mult
			}
			return f, true
		}
	}

	if f, ok := parseSpelledNumber(text); ok {
		return f, true
	}

	if m := digitRun.FindString(text); m != "" {
		if f, ok := parseDigits(m); ok {
			return f, true
		}
	}

	if negationWord.MatchString(text) {
		return 0, true
	}
	return 0, false
}

// parseDigits parses a digit run with optional thousands separators. A run
// like "1.2.3" is cut at its second period. A run too large for a float64
// yields +Inf.
func parseDigits(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimRight(s, ".")
	if first := strings.IndexByte(s, '.'); first >= 0 {
		if second := strings.IndexByte(s[first+1:], '.'); second >= 0 {
			s = s[:first+1+second]
		}
	}
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// parseSpelledNumber accumulates English number words. Parsing stops at the
// first unrelated word once a number has started.
func parseSpelledNumber(text string) (float64, bool) {
	var (
		total, current float64
		fraction       float64
		place          = 0.1
		inFraction     bool
		found          bool
	)

	for _, tok := range wordBoundary.Split(strings.ToLower(text), -1) {
		if tok == "" {
			continue
		}

		if inFraction {
			if d, ok := unitWords[tok]; ok {
				fraction += d * place
				place /= 10
				found = true
				continue
			}
			if mult, ok := scaleWords[tok]; ok {
				total += (current + fraction) * mult
				current, fraction = 0, 0
				inFraction = false
				continue
			}
			break
		}

		if d, ok := unitWords[tok]; ok {
			current += d
			found = true
			continue
		}
		if d, ok := teenWords[tok]; ok {
			current += d
			found = true
			continue
		}
		if d, ok := tensWords[tok]; ok {
			current += d
			found = true
			continue
		}
		if tok == "hundred" {
			if current == 0 {
				current = 1
			}
			current *= 100
			found = true
			continue
		}
		if mult, ok := scaleWords[tok]; ok {
			if current == 0 {
				current = 1
			}
			total += current * mult
			current = 0
			found = true
			continue
		}
		if tok == "point" {
			inFraction = true
			continue
		}
		if tok == "and" && found {
			continue
		}
		if found {
			break
		}
	}

	if !found {
		return 0, false
	}
	return total + current + fraction, true
}

func clamp(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}
