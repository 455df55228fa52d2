// Package format escapes text for Telegram parse modes.
package format

import (
	"fmt"
	"strings"
)

// Version is a Telegram markdown dialect.
type Version int

const (
	MarkdownV1 Version = 1
	MarkdownV2 Version = 2
)

var escapers = map[Version]*strings.Replacer{
	MarkdownV1: escaper("_*`["),
	MarkdownV2: escaper("\\_*[]()~`>#+-=|{}.!"),
}

// escaper prefixes every rune of specials with a backslash.
func escaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes the special characters of version in text.
func EscapeMarkdown(text string, version Version) (string, error) {
	esc, ok := escapers[version]
	if !ok {
		return "", fmt.Errorf("unsupported markdown version: %d", version)
	}
	return esc.Replace(text), nil
}

// MDV2 escapes text for MarkdownV2.
func MDV2(text string) string {
	return escapers[MarkdownV2].Replace(text)
}
