package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pubview/scholarstream/internal/scholar"
)

const (
	// SummaryMaxChars bounds stored summaries.
	SummaryMaxChars = 500
	// summaryMinChars is the shortest text considered informative.
	summaryMinChars = 20

	maxAuthors = 10
	minYear    = 1900
	maxYear    = 2030
)

var (
	fullDatePatterns = []struct {
		re     *regexp.Regexp
		layout string
	}{
		{regexp.MustCompile(`\b\d{4}/\d{1,2}/\d{1,2}\b`), "2006/1/2"},
		{regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`), "2006-1-2"},
		{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), "1/2/2006"},
		{regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`), "1-2-2006"},
	}

	yearPattern     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	yearRunPattern  = regexp.MustCompile(`\d{4}`)
	citedByPattern  = regexp.MustCompile(`(?i)cited\s+by\s+(\d+)`)
	citationsOfN    = regexp.MustCompile(`(?i)(\d+)\s+citations?`)
	bareIntPattern  = regexp.MustCompile(`\d+`)
	authorNoise     = regexp.MustCompile(`[^\w\s\-.]`)
	embeddedDigits  = regexp.MustCompile(`\d`)
	parenFragments  = regexp.MustCompile(`\([^)]*\)`)
	digitsOnlyCheck = regexp.MustCompile(`^\d+$`)
)

// ParseDate extracts a publication year and a normalized YYYY-MM-DD date from
// raw page text. When only a bare year in [1900,2030] is present the date is
// synthesized as YYYY-01-01. Both zero values mean the text carried no usable
// date at all.
func ParseDate(text string) (int, string) {
	for _, p := range fullDatePatterns {
		match := p.re.FindString(text)
		if match == "" {
			continue
		}
		t, err := time.Parse(p.layout, match)
		if err != nil {
			continue
		}
		return t.Year(), t.Format("2006-01-02")
	}

	if match := yearPattern.FindString(text); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil && year >= minYear && year <= maxYear {
			return year, match + "-01-01"
		}
	}
	return 0, ""
}

// ParseAuthors splits raw author text into cleaned names. Trailing venue/year
// fragments are stripped, tokens are de-noised, and the list is deduplicated
// and capped at ten entries.
func ParseAuthors(text string) []string {
	if idx := strings.Index(text, " - "); idx >= 0 {
		text = text[:idx]
	}
	if loc := yearRunPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	seen := make(map[string]struct{})
	authors := make([]string, 0, maxAuthors)
	for _, token := range strings.Split(text, ",") {
		name := cleanAuthorToken(token)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		authors = append(authors, name)
		if len(authors) == maxAuthors {
			break
		}
	}
	return authors
}

func cleanAuthorToken(token string) string {
	token = embeddedDigits.ReplaceAllString(token, "")
	token = authorNoise.ReplaceAllString(token, "")
	token = strings.Join(strings.Fields(token), " ")
	if len(token) <= 1 || digitsOnlyCheck.MatchString(token) {
		return ""
	}
	return token
}

// ParseCitations extracts a citation count, preferring an explicit
// "cited by N" phrase over any bare integer in the text.
func ParseCitations(text string) int {
	if m := citedByPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := citationsOfN.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := bareIntPattern.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return 0
}

var (
	journalKeywords    = []string{"journal", "nature", "science", "ieee", "acm", "transactions"}
	conferenceKeywords = []string{"conference", "proceedings", "workshop", "symposium"}
	preprintKeywords   = []string{"arxiv", "preprint", "biorxiv", "medrxiv", "ssrn"}
)

// InferVenue cleans raw venue text and classifies it by keyword.
func InferVenue(text string) (string, scholar.VenueType) {
	venue := strings.TrimSpace(parenFragments.ReplaceAllString(text, ""))
	if venue == "" {
		venue = strings.TrimSpace(text)
	}

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, journalKeywords):
		return venue, scholar.VenueJournal
	case containsAny(lower, conferenceKeywords):
		return venue, scholar.VenueConference
	case containsAny(lower, preprintKeywords):
		return venue, scholar.VenuePreprint
	default:
		return venue, scholar.VenueUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// TruncateSummary bounds summary text. Text shorter than the informative
// minimum is dropped entirely.
func TruncateSummary(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= summaryMinChars {
		return ""
	}
	if len(runes) > SummaryMaxChars {
		return string(runes[:SummaryMaxChars])
	}
	return text
}
