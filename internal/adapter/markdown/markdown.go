// Package markdown prepares raw note text for embedding. All
// transforms are pure and deterministic; no I/O happens here.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	frontMatterRe = regexp.MustCompile(`(?s)\A---\r?\n.*?\r?\n---\r?\n?`)
	fencedCodeRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe  = regexp.MustCompile("`[^`\n]+`")
	imageRe       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldStarRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderRe   = regexp.MustCompile(`__([^_]+)__`)
	italicStarRe  = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnderRe = regexp.MustCompile(`_([^_\n]+)_`)
	blankRunsRe   = regexp.MustCompile(`\n{3,}`)

	hashtagRe        = regexp.MustCompile(`#([\w-]+)`)
	frontMatterTagRe = regexp.MustCompile(`(?m)^tags:\s*\[([^\]]*)\]`)
)

// Preprocess converts raw markdown into plain text suitable for
// embedding: front matter and markup are stripped, code is replaced
// with placeholders, and a header line with the document's title and
// path is prepended for retrieval context.
func Preprocess(title, path, text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return ""
	}
	return fmt.Sprintf("Title: %s\nPath: %s\n\n%s", title, path, cleaned)
}

// Clean strips markdown syntax without adding the header line.
func Clean(text string) string {
	text = frontMatterRe.ReplaceAllString(text, "")
	text = fencedCodeRe.ReplaceAllString(text, "[code]")
	text = inlineCodeRe.ReplaceAllString(text, "[code]")
	text = imageRe.ReplaceAllString(text, "[image: $1]")
	text = linkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = boldStarRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = italicUnderRe.ReplaceAllString(text, "$1")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ExtractTags collects hashtag tokens from the body plus any tags
// declared in a front-matter "tags: [...]" list. Deduplicated,
// order not meaningful.
func ExtractTags(text string) []string {
	seen := make(map[string]struct{})
	var tags []string

	add := func(tag string) {
		tag = strings.Trim(strings.TrimSpace(tag), `"'`)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	if m := frontMatterTagRe.FindStringSubmatch(text); m != nil {
		for _, tag := range strings.Split(m[1], ",") {
			add(tag)
		}
	}

	// Hashtags are matched against the cleaned body so heading markers
	// and code blocks do not produce false positives.
	for _, m := range hashtagRe.FindAllStringSubmatch(Clean(text), -1) {
		add(m[1])
	}

	return tags
}

// Truncate caps a string at n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
