// Package parser extracts wikilinks and tags from note content.
package parser

import (
	"regexp"
	"strings"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|[\s\p{Zs}])#([\p{L}\p{N}_/-]+)`)
)

// ExtractLinks returns the deduplicated wikilink targets found in content,
// in order of first occurrence. Heading anchors ([[Title#heading]]) and
// aliases ([[Title|alias]]) are discarded; unclosed markers are ignored.
func ExtractLinks(content string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if i := strings.IndexAny(target, "#|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ExtractTags returns the deduplicated #tags found in content, without the
// leading '#'. A tag must start the content or follow whitespace; slashes
// allow hierarchies such as #project/alpha.
func ExtractTags(content string) []string {
	matches := tagRe.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		t := m[1]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
