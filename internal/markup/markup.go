// Package markup translates GitHub-flavored Markdown into Jira wiki markup.
// The rule set follows the well-known J2M conversion tables; it is lossy by
// nature and only needs to keep descriptions readable on the Jira side.
package markup

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```[ \t]*(\\w*)\\n(.*?)```")
	inlineCodeRe    = regexp.MustCompile("`([^`]+)`")
	headerRe        = regexp.MustCompile(`(?m)^(#{1,6})\s+`)
	boldRe          = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicStarRe    = regexp.MustCompile(`\*([^*\n]+)\*`)
	strikethroughRe = regexp.MustCompile(`~~(.+?)~~`)
	imageRe         = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	linkRe          = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	unorderedListRe = regexp.MustCompile(`(?m)^[-*]\s+`)
	orderedListRe   = regexp.MustCompile(`(?m)^\d+\.\s+`)
	blockquoteRe    = regexp.MustCompile(`(?m)^>\s?`)
)

// placeholder sentinels keep already-converted fragments out of reach of the
// later, greedier regular expressions.
const (
	boldOpen  = "\x00"
	boldClose = "\x01"
)

// ToJira converts a Markdown document to Jira wiki markup.
func ToJira(md string) string {
	if md == "" {
		return ""
	}

	// Code blocks first: their content must not be touched by any other rule.
	var blocks []string
	out := fenceRe.ReplaceAllStringFunc(md, func(match string) string {
		parts := fenceRe.FindStringSubmatch(match)
		lang, body := parts[1], parts[2]
		var block string
		if lang != "" {
			block = fmt.Sprintf("{code:%s}\n%s{code}", lang, body)
		} else {
			block = fmt.Sprintf("{code}\n%s{code}", body)
		}
		blocks = append(blocks, block)
		return fmt.Sprintf("\x02%d\x03", len(blocks)-1)
	})
	out = inlineCodeRe.ReplaceAllStringFunc(out, func(match string) string {
		parts := inlineCodeRe.FindStringSubmatch(match)
		blocks = append(blocks, "{{"+parts[1]+"}}")
		return fmt.Sprintf("\x02%d\x03", len(blocks)-1)
	})

	out = headerRe.ReplaceAllStringFunc(out, func(match string) string {
		level := strings.Count(match, "#")
		return fmt.Sprintf("h%d. ", level)
	})

	out = boldRe.ReplaceAllString(out, boldOpen+"$1"+boldClose)
	out = italicStarRe.ReplaceAllString(out, "_${1}_")
	out = strings.ReplaceAll(out, boldOpen, "*")
	out = strings.ReplaceAll(out, boldClose, "*")

	out = strikethroughRe.ReplaceAllString(out, "-$1-")
	out = imageRe.ReplaceAllString(out, "!$1!")
	out = linkRe.ReplaceAllString(out, "[$1|$2]")
	out = unorderedListRe.ReplaceAllString(out, "* ")
	out = orderedListRe.ReplaceAllString(out, "# ")
	out = blockquoteRe.ReplaceAllString(out, "bq. ")

	for i, block := range blocks {
		out = strings.Replace(out, fmt.Sprintf("\x02%d\x03", i), block, 1)
	}

	return out
}
