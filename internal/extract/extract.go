// Package extract scans fetched HTML for ingredient-list-shaped text blocks,
// scores them, and verifies the winner against the page's visible text.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/textutil"
)

// Result is the outcome of extraction from one fetched page.
type Result struct {
	Text           string
	Score          float64
	VerifiedInDOM  bool
	CandidateCount int
	Diagnostic     string
}

const (
	// minCandidateLen is the shortest candidate worth keeping, in runes.
	minCandidateLen = 10
	// maxLabelLen caps label-heading length so a keyword buried in a full
	// page dump is not treated as a label.
	maxLabelLen = 120
	// parentMinLen is the threshold for the parent-fallback candidate.
	parentMinLen = 20
	// siblingWalkLimit bounds how many following siblings of a label are
	// considered.
	siblingWalkLimit = 4
)

// ingredientAttrSelector finds elements tagged as ingredient sections by
// id, class, or test attribute.
const ingredientAttrSelector = "[id*='ingredient'],[class*='ingredient'],[data-testid*='ingredient']"

// labelElementSelector lists the elements that can act as an ingredient
// label or inline container.
const labelElementSelector = "h1, h2, h3, h4, h5, h6, strong, b, span, p, div"

// nonContentSelector matches elements whose text never renders for users.
const nonContentSelector = "script, style, noscript, iframe, svg"

var (
	enLabelRe   = regexp.MustCompile(`(?i)\b(?:ingredients|inci)\b`)
	labelMarkRe = regexp.MustCompile(`(?i)\b(?:ingredients?|inci)\s*[:：]|(?:全成分|成分|配料|配方)\s*[:：]`)
)

var zhKeywords = []string{"全成分", "成分", "配料", "配方"}

// IsChineseMarket reports whether the market code selects the Chinese
// keyword set.
func IsChineseMarket(market string) bool {
	switch strings.ToUpper(strings.TrimSpace(market)) {
	case "CN", "CHN", "CHINA":
		return true
	}
	return false
}

// Ingredients extracts the best ingredient-list candidate from an HTML
// document. It returns nil when no candidate survives cleaning, script
// rejection, and the minimum score filter.
func Ingredients(htmlStr, market string) *Result {
	if strings.TrimSpace(htmlStr) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	doc.Find(nonContentSelector).Remove()

	chinese := IsChineseMarket(market)
	candidates := collectCandidates(doc, chinese)

	cleaned := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		t := sliceAfterLabel(c)
		t = textutil.StripLabelPrefix(t)
		t, _ = textutil.CleanNoise(t)
		t = textutil.NormalizeSpace(t)
		if utf8.RuneCountInString(t) < minCandidateLen {
			continue
		}
		if looksLikeScript(t) {
			continue
		}
		key := dedupKey(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return nil
	}

	type scoredCandidate struct {
		text  string
		score float64
	}
	scored := make([]scoredCandidate, 0, len(cleaned))
	for _, t := range cleaned {
		if s := FeatureScore(t); s >= minKeepScore {
			scored = append(scored, scoredCandidate{text: t, score: s})
		}
	}
	if len(scored) == 0 {
		return nil
	}

	// Shorter comma-dense blocks beat long page dumps at equal score.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return utf8.RuneCountInString(scored[i].text) < utf8.RuneCountInString(scored[j].text)
	})

	best := scored[0]
	verified := verifyInDOM(doc, best.text)
	return &Result{
		Text:           best.text,
		Score:          best.score,
		VerifiedInDOM:  verified,
		CandidateCount: len(cleaned),
		Diagnostic:     fmt.Sprintf("candidates=%d score=%.2f verified=%t", len(cleaned), best.score, verified),
	}
}

// collectCandidates gathers raw candidate blocks from two heuristics:
// ingredient-tagged elements, and keyword labels with their surroundings.
func collectCandidates(doc *goquery.Document, chinese bool) []string {
	var candidates []string

	doc.Find(ingredientAttrSelector).Each(func(_ int, sel *goquery.Selection) {
		txt := textutil.NormalizeSpace(flattenText(sel))
		if utf8.RuneCountInString(txt) > minCandidateLen {
			candidates = append(candidates, txt)
		}
	})

	doc.Find(labelElementSelector).Each(func(_ int, sel *goquery.Selection) {
		label := textutil.NormalizeSpace(flattenText(sel))
		if !labelMatches(label, chinese) {
			return
		}

		// The label element itself often carries the inline list.
		if utf8.RuneCountInString(label) > minCandidateLen {
			candidates = append(candidates, label)
		}

		next := sel
		for i := 0; i < siblingWalkLimit; i++ {
			next = next.Next()
			if next.Length() == 0 {
				break
			}
			txt := textutil.NormalizeSpace(flattenText(next))
			if utf8.RuneCountInString(txt) > minCandidateLen {
				candidates = append(candidates, txt)
			}
		}

		if parent := sel.Parent(); parent.Length() > 0 {
			txt := textutil.NormalizeSpace(flattenText(parent))
			if utf8.RuneCountInString(txt) > parentMinLen {
				candidates = append(candidates, txt)
			}
		}
	})

	return candidates
}

// labelMatches decides whether element text is an ingredient label:
// word-boundary match for the English keywords, substring match for the
// Chinese ones, and never for text longer than maxLabelLen runes.
func labelMatches(label string, chinese bool) bool {
	if label == "" || utf8.RuneCountInString(label) > maxLabelLen {
		return false
	}
	if chinese {
		for _, k := range zhKeywords {
			if strings.Contains(label, k) {
				return true
			}
		}
		return false
	}
	return enLabelRe.MatchString(label)
}

// sliceAfterLabel keeps only the text after a label marker that appears
// mid-string, e.g. "Product details Ingredients: Water, ..." becomes
// "Water, ...".
func sliceAfterLabel(s string) string {
	if loc := labelMarkRe.FindStringIndex(s); loc != nil {
		return s[loc[1]:]
	}
	return s
}

func dedupKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// flattenText renders the selection's text the way a browser would show it:
// text nodes trimmed and joined with single spaces.
func flattenText(sel *goquery.Selection) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectText(node, &parts)
	}
	return strings.Join(parts, " ")
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
