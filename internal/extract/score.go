package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/textutil"
)

const (
	// Fixed scores for degenerate candidates.
	shortTextScore  = 0.1
	longDumpScore   = 0.2
	scriptTextScore = 0.05

	// Accumulating feature weights.
	separatorBonus  = 0.35
	tokenHitWeight  = 0.08
	tokenHitCap     = 0.35
	denseListBonus  = 0.3
	mediumListBonus = 0.25

	// minKeepScore filters candidates that score like page noise.
	minKeepScore = 0.3

	// longDumpLen marks text too long to be a bare ingredient list.
	longDumpLen = 3000

	// scriptLeadLen is the minimum length at which a brace-led candidate
	// is treated as a serialized payload.
	scriptLeadLen = 120

	// verifyPrefixLen is how many runes of the winner must appear in the
	// page's visible text.
	verifyPrefixLen = 20
)

// commonTokens are high-frequency ingredient words used as a presence
// signal, English and Chinese.
var commonTokens = []string{
	"water",
	"aqua",
	"glycerin",
	"alcohol",
	"fragrance",
	"parfum",
	"sodium",
	"citric",
	"acid",
	"ethanol",
	"乙醇",
	"甘油",
	"水",
}

var (
	separatorSplitRe = regexp.MustCompile(`[,;，；]\s*`)
	jsDeclRe         = regexp.MustCompile(`\b(?:var|let|const)\s+[A-Za-z_$][\w$]*\s*=`)
)

// scriptMarkers are lowercase substrings that betray bundler or runtime
// payloads rather than page copy.
var scriptMarkers = []string{
	"function(",
	"window.",
	"document.",
	"self.__next_f",
	"webpackjsonp",
	"__next_data__",
	`"buildid"`,
}

// FeatureScore rates how much a text block looks like an ingredient list.
// Scores are in [0,1]; degenerate shapes get small fixed scores.
func FeatureScore(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	n := utf8.RuneCountInString(t)
	if n < minCandidateLen {
		return shortTextScore
	}
	if n > longDumpLen {
		return longDumpScore
	}
	if looksLikeScript(t) {
		return scriptTextScore
	}

	score := 0.0
	if strings.ContainsAny(t, ",;，；") {
		score += separatorBonus
	}

	lower := strings.ToLower(t)
	hits := 0
	for _, tok := range commonTokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	bonus := tokenHitWeight * float64(hits)
	if bonus > tokenHitCap {
		bonus = tokenHitCap
	}
	score += bonus

	parts := 0
	for _, p := range separatorSplitRe.Split(t, -1) {
		if strings.TrimSpace(p) != "" {
			parts++
		}
	}
	if parts >= 5 {
		score += denseListBonus
	} else if parts >= 4 {
		score += mediumListBonus
	}

	if score > 1 {
		score = 1
	}
	return score
}

// looksLikeScript reports whether text is a script or serialized-JSON
// payload: brace-led blobs, bundler markers, declaration shapes, or a
// JSON-dense character profile.
func looksLikeScript(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if utf8.RuneCountInString(t) >= scriptLeadLen &&
		(strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")) {
		return true
	}
	lower := strings.ToLower(t)
	for _, m := range scriptMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if jsDeclRe.MatchString(t) {
		return true
	}
	if strings.Count(t, "{") >= 3 && strings.Count(t, "}") >= 3 &&
		strings.Count(t, ":") >= 4 && strings.Count(t, `"`) >= 4 {
		return true
	}
	return false
}

// verifyInDOM confirms the winning candidate is grounded in the page's
// visible text: the first verifyPrefixLen runes of the label-stripped
// winner must appear in the flattened document text. The document must
// already have its non-content elements removed.
func verifyInDOM(doc *goquery.Document, winner string) bool {
	if winner == "" {
		return false
	}
	dom := strings.ToLower(textutil.NormalizeSpace(flattenText(doc.Selection)))
	prefix := textutil.NormalizeSpace(textutil.StripLabelPrefix(winner))
	if r := []rune(prefix); len(r) > verifyPrefixLen {
		prefix = string(r[:verifyPrefixLen])
	}
	prefix = strings.ToLower(prefix)
	if prefix == "" {
		return false
	}
	return strings.Contains(dom, prefix)
}
