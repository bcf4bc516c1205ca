package research

import (
	"fmt"
	"strconv"

	"rankwise/internal/llm"
)

// Signals requested per keyword.
const (
	SignalRanking     = "ranking"
	SignalCompetitors = "competitors"
	SignalVolume      = "volume"
	SignalTraffic     = "traffic"
)

const systemPrompt = "You are an SEO research assistant. Answer with a single JSON object and nothing else: " +
	"no markdown, no code fences, no commentary. Use null for anything you do not know."

func messages(user string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
}

func rankingPrompt(target, keyword string) []llm.Message {
	return messages(fmt.Sprintf(`Signal: %s
Site: %s
Keyword: %q

Estimate where this site currently ranks in Google organic results for the keyword.
Respond as {"rankingPage": "<URL of the ranking page on the site>", "rankingPosition": <1-based position>, "rankingPageNumber": <results page 1-20>}.
If the site does not rank in the first 200 results, use null for every field.`, SignalRanking, target, keyword))
}

func competitorsPrompt(target, keyword string) []llm.Message {
	return messages(fmt.Sprintf(`Signal: %s
Site: %s
Keyword: %q

List the top organic competitors ranking for this keyword, excluding the site itself.
Respond as {"competitors": ["<domain or URL>", ...]} with at most 10 entries, best ranked first.`, SignalCompetitors, target, keyword))
}

func volumePrompt(keyword string) []llm.Message {
	return messages(fmt.Sprintf(`Signal: %s
Keyword: %q

Estimate the average monthly Google search volume for this keyword in the United States.
Respond as {"monthlySearches": <integer>}.`, SignalVolume, keyword))
}

// VolumeUnknown is sent to the traffic prompt when no volume was recovered.
const VolumeUnknown = "unknown, please estimate"

func trafficPrompt(target, keyword string, monthlySearches *int64) []llm.Message {
	volume := VolumeUnknown
	if monthlySearches != nil {
		volume = strconv.FormatInt(*monthlySearches, 10)
	}
	return messages(fmt.Sprintf(`Signal: %s
Site: %s
Keyword: %q
Monthly searches: %s

Estimate the daily organic visitors a first-position result would receive for this keyword, and how hard it is to rank.
Respond as {"dailyVisitors": <integer>, "difficulty": "easy" | "medium" | "hard" | "very hard"}.`, SignalTraffic, target, keyword, volume))
}

// KeywordIdeasPrompt asks for related keyword ideas around a seed keyword
// or a site. Either may be empty but not both.
func KeywordIdeasPrompt(seed, site string) []llm.Message {
	subject := fmt.Sprintf("Seed keyword: %q", seed)
	switch {
	case seed == "":
		subject = "Site: " + site
	case site != "":
		subject += "\nSite: " + site
	}
	return messages(fmt.Sprintf(`%s

Suggest up to 20 keywords worth targeting for organic search.
Respond as {"keywords": [{"keyword": "<phrase>", "searchVolume": <monthly searches>, "difficulty": <0-100>, "intent": "informational" | "commercial" | "transactional" | "navigational", "notes": "<one short sentence>"}]}.`, subject))
}
