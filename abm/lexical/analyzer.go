// Package lexical scores post text with word lists and regular expressions.
// It is the default content scorer: deterministic, offline and cheap.
package lexical

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/theimaginaryfoundation/opinion-amplifier/abm"
)

// Language selects the word lists.
type Language string

const (
	English   Language = "en"
	Norwegian Language = "no"
)

// ParseLanguage accepts "en" or "no".
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, nil
	case Norwegian:
		return Norwegian, nil
	default:
		return "", fmt.Errorf("ParseLanguage: unsupported language %q", s)
	}
}

// RE2 \b only knows ASCII word characters, so boundaries are spelled out.
const boundary = `(?:^|$|[^\p{L}\p{N}_])`

var (
	sentenceSplit     = regexp.MustCompile(`[.!?]`)
	doubleScareQuotes = regexp.MustCompile(`"[^"]{1,20}"`)
	singleScareQuotes = regexp.MustCompile(`'[^']{1,20}'`)
)

// Analyzer implements abm.ContentScorer for one language.
type Analyzer struct {
	lang Language
	lex  lexicon

	confrontational []*regexp.Regexp
	consensus       []*regexp.Regexp
	connectors      []*regexp.Regexp
}

// New compiles the patterns for lang.
func New(lang Language) (*Analyzer, error) {
	var lex lexicon
	switch lang {
	case English:
		lex = english
	case Norwegian:
		lex = norwegian
	default:
		return nil, fmt.Errorf("lexical.New: unsupported language %q", lang)
	}
	a := &Analyzer{lang: lang, lex: lex}
	var err error
	if a.confrontational, err = compileAll(lex.confrontational); err != nil {
		return nil, fmt.Errorf("lexical.New: %w", err)
	}
	if a.consensus, err = compileAll(lex.consensus); err != nil {
		return nil, fmt.Errorf("lexical.New: %w", err)
	}
	if a.connectors, err = compileAll(lex.connectors); err != nil {
		return nil, fmt.Errorf("lexical.New: %w", err)
	}
	return a, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(strings.ReplaceAll(p, `\b`, boundary))
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Language reports the analyzer's language.
func (a *Analyzer) Language() Language { return a.lang }

// Score never fails.
func (a *Analyzer) Score(_ context.Context, text string) (abm.ContentScores, error) {
	return a.Analyze(text), nil
}

// Analyze computes all four scores.
func (a *Analyzer) Analyze(text string) abm.ContentScores {
	lower := strings.ToLower(text)
	return abm.ContentScores{
		EmotionalIntensity:   a.emotionalIntensity(text, lower),
		Provocativeness:      a.provocativeness(text, lower),
		LogicalCoherence:     a.logicalCoherence(lower),
		ConsensusOrientation: a.consensusOrientation(lower),
	}
}

func (a *Analyzer) emotionalIntensity(text, lower string) float64 {
	score := math.Min(float64(strings.Count(text, "!"))*0.15, 0.45)
	score += math.Min(float64(strings.Count(text, "?"))*0.08, 0.24)

	if len([]rune(text)) > 10 && capsRatio(text) > 0.3 {
		score += 0.2
	}
	score += 0.12 * float64(countContained(lower, a.lex.highEmotion))
	score += 0.06 * float64(countContained(lower, a.lex.mediumEmotion))
	return math.Min(1, score)
}

func (a *Analyzer) provocativeness(text, lower string) float64 {
	score := 0.15 * float64(countMatching(lower, a.confrontational))
	score += math.Min(float64(countWord(lower, a.lex.you))*0.08, 0.24)

	quotes := len(doubleScareQuotes.FindAllStringIndex(text, -1)) + len(singleScareQuotes.FindAllStringIndex(text, -1))
	score += math.Min(float64(quotes)*0.1, 0.2)

	if strings.Contains(text, "?") && countContained(lower, a.lex.challenge) > 0 {
		score += 0.15
	}
	if words := strings.Fields(lower); len(words) > 0 && contains(a.lex.imperative, words[0]) {
		score += 0.1
	}
	return math.Min(1, score)
}

func (a *Analyzer) logicalCoherence(lower string) float64 {
	score := 0.4 + 0.1*float64(countMatching(lower, a.connectors))

	var sentences []string
	for _, s := range sentenceSplit.Split(lower, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) >= 2 {
		score += 0.1
	}
	if len(sentences) > 0 {
		words := 0
		for _, s := range sentences {
			words += len(strings.Fields(s))
		}
		if float64(words)/float64(len(sentences)) > 8 {
			score += 0.1
		}
	}
	if countContained(lower, a.lex.evidence) > 0 {
		score += 0.15
	}
	return math.Min(1, score)
}

func (a *Analyzer) consensusOrientation(lower string) float64 {
	score := 0.3 + 0.12*float64(countMatching(lower, a.consensus))
	score += 0.05 * float64(countContained(lower, a.lex.hedges))
	if countContained(lower, a.lex.acknowledgement) > 0 {
		score += 0.15
	}
	score -= 0.08 * float64(countContained(lower, a.lex.absolutes))
	return math.Max(0, math.Min(1, score))
}

func capsRatio(text string) float64 {
	var caps, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			caps++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(caps) / float64(letters)
}

func countContained(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func countMatching(s string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		if re.MatchString(s) {
			n++
		}
	}
	return n
}

// countWord counts whole-word occurrences of w.
func countWord(s, w string) int {
	n := 0
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '_'
	}) {
		if tok == w {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
