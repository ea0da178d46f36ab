// Package textutil provides the shared text cleanup primitives used by both
// the harvesting and normalization pipelines: crawler/UI noise removal,
// ingredient-label prefix stripping, and whitespace normalization.
package textutil

import (
	"regexp"
	"strings"
)

// Zero-width characters and BOMs that frequently survive HTML scraping.
const zeroWidthChars = "\u200B\u200C\u200D\uFEFF"

var zeroWidthReplacer = strings.NewReplacer("\u200B", "", "\u200C", "", "\u200D", "", "\uFEFF", "")

// edgePunctCutset holds ASCII and full-width trailing punctuation trimmed
// from cleaned text and from individual tokens.
const edgePunctCutset = "。．. ;；,，"

var (
	urlRe           = regexp.MustCompile(`(?i)(?:https?://|\bwww\.)[^\s)]+`)
	hashtagRe       = regexp.MustCompile(`(^|[\s,;，；])#[A-Za-z0-9][A-Za-z0-9_-]{0,40}`)
	bracketTokenRe  = regexp.MustCompile(`(?i)\[\s*(?:more|less)\s*\]`)
	ellipsisRe      = regexp.MustCompile(`\.{3,}|…+`)
	truncationEndRe = regexp.MustCompile(`(?i)(?:\b(?:and|&)\b\s*(?:\.{3,}|…)?\s*$|\betc\.?\s*$)`)
	whitespaceRunRe = regexp.MustCompile(`\s+`)
	labelPrefixEnRe = regexp.MustCompile(`(?i)^\s*(?:ingredients?|ingredient\s+list|ingredients?\s+list|inci|inci\s+list)\s*[:：]\s*`)
	labelPrefixZhRe = regexp.MustCompile(`^\s*(?:全成分|成分|配料|配方)\s*[:：]\s*`)
	uiArtifactRe    = regexp.MustCompile(`(?i)(` +
		`read\s+more(?:\s+on\s+how\s+to\s+read\s+an\s+ingredient\s+list)?` +
		`|read\s+less` +
		`|show\s+more|show\s+less` +
		`|see\s+more|see\s+less` +
		`|view\s+full\s+list` +
		`|click\s+here` +
		`|see\s+text` +
		`|show\s+all\s+ingredients(?:\s+by\s+function)?` +
		`|ingredients?\s+by\s+function` +
		`|how\s+to\s+read\s+an\s+ingredient\s+list` +
		`)`)
)

// CleanNoise strips crawler and UI artifacts from text without inventing new
// content: marketing hashtags, URLs, "Read more"-style phrases, bracket
// tokens like "[more]", ellipsis runs, and dangling truncation endings.
// It returns the cleaned text plus one human-readable note per rule that
// actually changed the text. Running it again on its own output yields no
// further change and no further notes.
func CleanNoise(text string) (string, []string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", nil
	}

	var notes []string

	if strings.ContainsAny(s, zeroWidthChars) {
		s = zeroWidthReplacer.Replace(s)
		notes = append(notes, "Removed zero-width spaces")
	}

	s = substitute(s, urlRe, " ", "Stripped URL(s)", &notes)
	// Keep the separator character preceding the hashtag.
	s = substitute(s, hashtagRe, "$1", "Removed marketing hashtag(s)", &notes)
	s = substitute(s, bracketTokenRe, " ", "Removed UI bracket token(s)", &notes)
	s = substitute(s, uiArtifactRe, " ", "Removed UI phrase(s)", &notes)
	s = substitute(s, truncationEndRe, "", "Removed truncation ending", &notes)
	s = substitute(s, ellipsisRe, " ", "Removed ellipsis artifact(s)", &notes)
	// Ellipsis normalization can expose a newly trailing conjunction.
	s = substitute(s, truncationEndRe, "", "Removed truncation ending", &notes)

	s = NormalizeSpace(s)
	s = TrimEdgePunctuation(s)
	return s, notes
}

func substitute(s string, re *regexp.Regexp, repl, note string, notes *[]string) string {
	out := re.ReplaceAllString(s, repl)
	if out != s {
		*notes = append(*notes, note)
	}
	return out
}

// StripLabelPrefix drops a leading "Ingredients:" / "INCI list:" /
// "全成分："-style label from text, in English or Chinese form.
func StripLabelPrefix(s string) string {
	s = labelPrefixEnRe.ReplaceAllString(s, "")
	s = labelPrefixZhRe.ReplaceAllString(s, "")
	return s
}

// NormalizeSpace collapses all whitespace runs, including newlines and
// full-width spaces, into single ASCII spaces and trims the ends.
func NormalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}

// TrimEdgePunctuation removes trailing and leading list punctuation such as
// stray commas, semicolons, and CJK full stops left behind by truncation.
func TrimEdgePunctuation(s string) string {
	return strings.Trim(strings.TrimSpace(s), edgePunctCutset)
}
