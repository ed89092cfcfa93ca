// Package services – history labels
//
// Audit rows carry a compact display label derived from the question, used
// by the history listing the same way chat titles are used in a chat UI.
package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	labelMaxWords = 8
	labelMaxRunes = 60
	labelFallback = "Query"
)

var labelWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// labelStopWords are filler words dropped from generated labels.
var labelStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "for": {}, "to": {}, "in": {},
	"on": {}, "with": {}, "and": {}, "or": {}, "is": {}, "are": {},
	"show": {}, "me": {}, "list": {}, "give": {}, "what": {}, "which": {},
	"please": {},
}

// generateLabel derives a concise title-cased label from the question.
// Falls back to a generic label when nothing usable remains.
func generateLabel(question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return labelFallback
	}
	toks := labelWordRE.FindAllString(strings.ToLower(question), -1)
	if len(toks) == 0 {
		return labelFallback
	}

	titleCaser := cases.Title(language.English)
	out := make([]string, 0, labelMaxWords)
	for _, w := range toks {
		if _, skip := labelStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= labelMaxWords {
			break
		}
	}
	if len(out) == 0 {
		return labelFallback
	}

	label := strings.Join(out, " ")
	if utf8.RuneCountInString(label) > labelMaxRunes {
		label = string([]rune(label)[:labelMaxRunes])
	}
	return label
}
