// Package parser normalizes raw multilingual (EN/ZH) ingredient text into an
// ordered, standardized INCI list. It never invents ingredients: tokens are
// only mapped or carried through, preserving the original order.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/textutil"
)

// Status is the terminal state of one normalization call.
type Status string

const (
	StatusOK          Status = "OK"
	StatusNeedsReview Status = "NEEDS_REVIEW"
	StatusNeedsSource Status = "NEEDS_SOURCE"
)

const (
	// reviewThreshold is the confidence below which a parse is flagged
	// for human review.
	reviewThreshold = 0.6
	// separatorFailPenalty applies when the text looks like many
	// ingredients but contains no recognizable separator.
	separatorFailPenalty = 0.5
	// unknownCJKPenalty applies per Chinese token with no INCI mapping.
	unknownCJKPenalty = 0.1
)

// ParsedIngredient is a single normalized entry. Order is 1-based over the
// emitted entries; dropped tokens consume no order.
type ParsedIngredient struct {
	Order        int    `json:"order"`
	StandardName string `json:"standard_name"`
	OriginalText string `json:"original_text"`
	Uncertain    bool   `json:"uncertain"`
	NeedsReview  bool   `json:"needs_review"`
}

// ReviewItem names one token that needs human attention and why.
type ReviewItem struct {
	OriginalText string `json:"original_text"`
	Issue        string `json:"issue"`
}

// Result is the outcome of normalizing one raw ingredient text.
type Result struct {
	Status             Status             `json:"parse_status"`
	Ingredients        []ParsedIngredient `json:"ingredients"`
	INCIList           string             `json:"inci_list"`
	Confidence         float64            `json:"parse_confidence"`
	UnrecognizedTokens []string           `json:"unrecognized_tokens"`
	Notes              []string           `json:"normalization_notes"`
	ReviewItems        []ReviewItem       `json:"needs_review"`
}

var (
	cjkRe          = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	angleTagRe     = regexp.MustCompile(`<[^>]{1,80}>`)
	parentheticRe  = regexp.MustCompile(`\([^)]*\)`)
	trademarkRe    = regexp.MustCompile(`[®™]`)
	keyPunctRe     = regexp.MustCompile(`[.:：]`)
	upperOrDigitRe = regexp.MustCompile(`[A-Z0-9]`)
	slashDelimRe   = regexp.MustCompile(`\s/\s`)
	wordishRe      = regexp.MustCompile(`[A-Za-z0-9]+`)

	quoteReplacer = strings.NewReplacer("’", "'", "‘", "'", "（", "(", "）", ")")
)

// Placeholder values treated as "no data at all".
var invalidExact = map[string]bool{
	"n/a":  true,
	"na":   true,
	"none": true,
	"null": true,
	"nan":  true,
}

// Phrases that mean the source never carried a real list.
var (
	invalidPhrasesEN = []string{
		"see image",
		"see packaging",
		"see package",
		"see back",
		"refer to packaging",
		"not available",
	}
	invalidPhrasesZH = []string{
		"详见包装",
		"见包装",
		"见外包装",
		"见图片",
		"请见包装",
	}
)

var primarySeparators = map[rune]bool{
	',': true, '，': true, '、': true,
	';': true, '；': true,
	'\n': true, '\r': true, '\t': true,
	'|': true, '•': true, '·': true, '●': true, '・': true,
}

var (
	bracketOpeners = map[rune]bool{'(': true, '（': true, '[': true, '【': true, '{': true}
	bracketClosers = map[rune]bool{')': true, '）': true, ']': true, '】': true, '}': true}
)

// Engine holds the immutable synonym lookup table. Build it once with
// NewEngine and share it freely; Parse is safe for concurrent use.
type Engine struct {
	lookup map[string]string
}

// NewEngine builds the engine from the built-in synonym table.
func NewEngine() *Engine {
	lookup := make(map[string]string, len(defaultSynonyms))
	for _, syn := range defaultSynonyms {
		key := normalizeLookupKey(syn.name)
		if key == "" {
			continue
		}
		if _, ok := lookup[key]; !ok {
			lookup[key] = syn.inci
		}
	}
	return &Engine{lookup: lookup}
}

// Parse normalizes one raw ingredient text into an ordered INCI list with
// confidence and an audit trail of every transformation applied.
func (e *Engine) Parse(raw string) Result {
	clean := preprocess(coerceText(raw))
	clean, noiseNotes := textutil.CleanNoise(clean)

	if looksInvalidBlob(clean) {
		return needsSourceResult()
	}

	tokens, sepFailed := splitIngredients(clean)
	if len(tokens) == 0 {
		return needsSourceResult()
	}

	confidence := 1.0
	if sepFailed {
		confidence -= separatorFailPenalty
	}

	parsed := []ParsedIngredient{}
	unrecognized := []string{}
	notes := []string{}
	notes = append(notes, noiseNotes...)
	reviewItems := []ReviewItem{}

	order := 1
	for _, tok := range tokens {
		tokenBefore := tok
		tok, removed := stripAngleTags(tok)
		if len(removed) > 0 {
			notes = append(notes, fmt.Sprintf("Removed tag(s) %s from '%s'", strings.Join(removed, ", "), tokenBefore))
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		key := normalizeLookupKey(tok)
		if standard, ok := e.lookup[key]; ok {
			// Only note mappings that change the token meaningfully.
			if normalizeLookupKey(standard) != key {
				notes = append(notes, fmt.Sprintf("Mapped '%s' -> '%s'", tok, standard))
			}
			parsed = append(parsed, ParsedIngredient{Order: order, StandardName: standard, OriginalText: tok})
			order++
			continue
		}

		if cjkRe.MatchString(tok) {
			unrecognized = appendUnique(unrecognized, tok)
			reviewItems = append(reviewItems, ReviewItem{OriginalText: tok, Issue: "No INCI mapping found"})
			confidence -= unknownCJKPenalty
			parsed = append(parsed, ParsedIngredient{
				Order:        order,
				StandardName: tok,
				OriginalText: tok,
				Uncertain:    true,
				NeedsReview:  true,
			})
			order++
			continue
		}

		if standard := canonicalizeLatinToken(tok); standard != "" {
			unrecognized = appendUnique(unrecognized, tok)
			parsed = append(parsed, ParsedIngredient{
				Order:        order,
				StandardName: standard,
				OriginalText: tok,
				Uncertain:    true,
			})
			order++
		}
	}

	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	status := StatusOK
	if confidence < reviewThreshold {
		status = StatusNeedsReview
	}

	names := make([]string, 0, len(parsed))
	for _, p := range parsed {
		if p.StandardName != "" {
			names = append(names, p.StandardName)
		}
	}

	return Result{
		Status:             status,
		Ingredients:        parsed,
		INCIList:           strings.Join(names, "; "),
		Confidence:         confidence,
		UnrecognizedTokens: unrecognized,
		Notes:              notes,
		ReviewItems:        reviewItems,
	}
}

// CleanedText returns the text the tokenizer would operate on: coerced,
// label-stripped, and noise-cleaned. Used to echo previews back to callers.
func CleanedText(raw string) string {
	clean, _ := textutil.CleanNoise(preprocess(coerceText(raw)))
	return clean
}

func needsSourceResult() Result {
	return Result{
		Status:             StatusNeedsSource,
		Ingredients:        []ParsedIngredient{},
		UnrecognizedTokens: []string{},
		Notes:              []string{},
		ReviewItems:        []ReviewItem{},
	}
}

func coerceText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if invalidExact[strings.ToLower(s)] {
		return ""
	}
	return s
}

func preprocess(raw string) string {
	s := strings.TrimSpace(raw)
	s = textutil.StripLabelPrefix(s)
	s = textutil.TrimEdgePunctuation(s)
	return textutil.NormalizeSpace(s)
}

func looksInvalidBlob(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	low := strings.ToLower(t)
	if invalidExact[low] {
		return true
	}
	for _, p := range invalidPhrasesEN {
		if strings.Contains(low, p) {
			return true
		}
	}
	for _, p := range invalidPhrasesZH {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// splitIngredients tokenizes cleaned text on the separator set, never
// splitting inside brackets. The second return value reports separator
// detection failure: a single blob that looks like many unseparated tokens.
func splitIngredients(clean string) ([]string, bool) {
	t := strings.TrimSpace(clean)
	if t == "" {
		return nil, false
	}

	tokens := splitOutsideBrackets(t, primarySeparators)

	// A single token with " / " patterns is a slash-delimited list; a bare
	// slash as in "Caprylic/Capric Triglyceride" is part of the name.
	if len(tokens) == 1 && slashDelimRe.MatchString(tokens[0]) {
		tokens = splitOutsideBrackets(tokens[0], map[rune]bool{'/': true})
	}

	normalized := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		s := strings.TrimSpace(tok)
		s = strings.Trim(s, " \t\n\r-–—•·●・")
		s = textutil.TrimEdgePunctuation(s)
		s = textutil.NormalizeSpace(s)
		if s != "" {
			normalized = append(normalized, s)
		}
	}

	sepFailed := false
	if len(normalized) == 1 {
		blob := normalized[0]
		wordish := wordishRe.FindAllString(blob, -1)
		sepFailed = utf8.RuneCountInString(blob) >= 80 || len(wordish) >= 6
	}
	return normalized, sepFailed
}

func splitOutsideBrackets(text string, separators map[rune]bool) []string {
	var tokens []string
	var buf strings.Builder
	depth := 0

	for _, ch := range text {
		switch {
		case bracketOpeners[ch]:
			depth++
			buf.WriteRune(ch)
		case bracketClosers[ch] && depth > 0:
			depth--
			buf.WriteRune(ch)
		case depth == 0 && separators[ch]:
			if tok := strings.TrimSpace(buf.String()); tok != "" {
				tokens = append(tokens, tok)
			}
			buf.Reset()
		default:
			buf.WriteRune(ch)
		}
	}
	if tok := strings.TrimSpace(buf.String()); tok != "" {
		tokens = append(tokens, tok)
	}
	return tokens
}

func stripAngleTags(s string) (string, []string) {
	var removed []string
	out := angleTagRe.ReplaceAllStringFunc(s, func(m string) string {
		removed = append(removed, m)
		return ""
	})
	return strings.TrimSpace(out), removed
}

// normalizeLookupKey reduces a token to its dictionary key: lowercase,
// ASCII quotes/parens, tags and parentheticals removed, slash and
// punctuation collapsed to spaces, trademark glyphs dropped.
func normalizeLookupKey(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = quoteReplacer.Replace(s)
	s = angleTagRe.ReplaceAllString(s, "")
	s = parentheticRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "/", " ")
	s = trademarkRe.ReplaceAllString(s, "")
	s = keyPunctRe.ReplaceAllString(s, " ")
	return textutil.NormalizeSpace(s)
}

// canonicalizeLatinToken title-cases an unmapped non-CJK token. Tokens that
// already carry uppercase, digits, or hyphen/slash structure keep their
// casing apart from the first letter, so "PEG-100" never becomes "Peg-100".
func canonicalizeLatinToken(token string) string {
	t := strings.TrimSpace(token)
	if t == "" {
		return ""
	}
	if upperOrDigitRe.MatchString(t) || strings.ContainsAny(t, "-/") {
		r := []rune(t)
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	}
	return cases.Title(language.Und, cases.NoLower).String(t)
}

func appendUnique(items []string, v string) []string {
	for _, it := range items {
		if it == v {
			return items
		}
	}
	return append(items, v)
}
