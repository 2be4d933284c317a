// Package extract turns raw page text into structured publication records.
// All field lookups walk ordered selector chains; a missing element means
// "try the next candidate", never a failure.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/pubview/scholarstream/internal/scholar"
)

// minTitleChars filters out navigation fragments matched by broad selectors.
const minTitleChars = 5

// Paper reads the item page the session is positioned at and assembles a
// Record. It reports false when no valid record could be built; a record
// without a title is discarded, not an error.
func Paper(ctx context.Context, s scholar.Session, sourceURL string) (scholar.Record, bool) {
	rec := scholar.Record{
		SourceURL: sourceURL,
		VenueType: scholar.VenueUnknown,
	}

	rec.Title = extractTitle(ctx, s)
	if rec.Title == "" {
		return scholar.Record{}, false
	}

	if text, ok := s.FirstText(ctx, authorSelectors); ok {
		rec.Authors = ParseAuthors(text)
	}
	if text, ok := s.FirstText(ctx, dateSelectors); ok {
		rec.Year, rec.PublicationDate = ParseDate(text)
	}
	rec.ArtifactURL = extractArtifact(ctx, s)
	if text, ok := s.FirstText(ctx, citationSelectors); ok {
		rec.CitationCount = ParseCitations(text)
	}
	if text, ok := s.FirstText(ctx, venueSelectors); ok {
		rec.Venue, rec.VenueType = InferVenue(text)
	}
	if text, ok := s.FirstText(ctx, summarySelectors); ok {
		rec.Summary = TruncateSummary(text)
	}

	if rec.PublicationDate == "" {
		rec.PublicationDate = DefaultDate(rec.Year)
	}
	return rec, true
}

// DefaultDate is the fallback publication date for a bare or unknown year.
func DefaultDate(year int) string {
	if year <= 0 {
		return "1900-01-01"
	}
	return fmt.Sprintf("%04d-01-01", year)
}

func extractTitle(ctx context.Context, s scholar.Session) string {
	for _, sel := range titleSelectors {
		text, ok := s.FirstText(ctx, []string{sel})
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if len([]rune(text)) > minTitleChars {
			return text
		}
	}
	return ""
}

func extractArtifact(ctx context.Context, s scholar.Session) string {
	for _, sel := range artifactSelectors {
		href, ok := s.Attr(ctx, sel, "href")
		if !ok || href == "" {
			continue
		}
		if strings.HasSuffix(href, ".pdf") ||
			strings.Contains(href, "doi.org") ||
			strings.Contains(href, "arxiv.org") {
			return href
		}
	}
	return ""
}
