package matcher

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"treegift/internal/recipient"
)

// Options holds the matching thresholds.
type Options struct {
	// Threshold is the fraction of name tokens that must appear in a URL; a
	// candidate matches only when the ratio is strictly greater. Values of 1
	// or more never match.
	Threshold float64
	// RequireUnique assigns only when exactly one candidate matches. When
	// false the single best-scoring candidate wins; ties stay unresolved.
	RequireUnique bool
}

// DefaultOptions returns the conservative defaults.
func DefaultOptions() Options {
	return Options{Threshold: 0.5, RequireUnique: true}
}

// Result is the outcome of one matching pass.
type Result struct {
	Records recipient.List
	// Assigned lists keys that received an image in this pass.
	Assigned []string
	// Ambiguous lists keys with two or more qualifying candidates.
	Ambiguous []string
	// ShowExtendedColumns is true when any assignee differs from its
	// recipient. Presentation only.
	ShowExtendedColumns bool
}

// Match assigns images from pool to records that lack one. Records whose
// image was detached by hand are skipped.
func Match(pool []string, records recipient.List, opts Options) Result {
	fold := cases.Fold()

	candidates := make([]candidate, 0, len(pool))
	for _, raw := range pool {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		candidates = append(candidates, candidate{url: raw, haystack: fold.String(norm.NFC.String(decoded(raw)))})
	}

	out := Result{Records: records.Clone()}
	for i := range out.Records {
		rec := &out.Records[i]
		if rec.AssigneeDiffers() {
			out.ShowExtendedColumns = true
		}
		if rec.ImageAssigned || rec.ImageDetached || len(candidates) == 0 {
			continue
		}
		tokens := tokenize(fold, rec.RecipientName)
		if len(tokens) == 0 {
			continue
		}

		best, ambiguous := pick(candidates, tokens, opts)
		if ambiguous {
			out.Ambiguous = append(out.Ambiguous, rec.Key)
			continue
		}
		if best == nil {
			continue
		}
		rec.AssignImage(best.url, FileName(best.url))
		out.Assigned = append(out.Assigned, rec.Key)
	}
	return out
}

// Score returns the fraction of name tokens found in imageURL.
func Score(name, imageURL string) float64 {
	fold := cases.Fold()
	tokens := tokenize(fold, name)
	if len(tokens) == 0 {
		return 0
	}
	return ratio(tokens, fold.String(norm.NFC.String(decoded(imageURL))))
}

// FileName returns the final path segment of an image URL.
func FileName(imageURL string) string {
	trimmed := strings.TrimSpace(imageURL)
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Path != "" {
		return path.Base(parsed.Path)
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

type candidate struct {
	url      string
	haystack string
}

func pick(candidates []candidate, tokens []string, opts Options) (*candidate, bool) {
	var (
		matches   []*candidate
		bestScore float64
		best      *candidate
		tied      bool
	)
	for i := range candidates {
		score := ratio(tokens, candidates[i].haystack)
		if score <= opts.Threshold {
			continue
		}
		matches = append(matches, &candidates[i])
		switch {
		case score > bestScore:
			bestScore, best, tied = score, &candidates[i], false
		case score == bestScore:
			tied = true
		}
	}
	switch {
	case len(matches) == 0:
		return nil, false
	case len(matches) == 1:
		return matches[0], false
	case opts.RequireUnique || tied:
		return nil, true
	default:
		return best, false
	}
}

func ratio(tokens []string, haystack string) float64 {
	matched := 0
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func tokenize(fold cases.Caser, name string) []string {
	return strings.Fields(fold.String(norm.NFC.String(name)))
}

// decoded unescapes percent-encoding so "Asha%20Rao.jpg" matches "asha".
func decoded(raw string) string {
	if unescaped, err := url.PathUnescape(raw); err == nil {
		return unescaped
	}
	return raw
}
