package resolver

import (
	"bufio"
	"io"
	"strings"
)

type scanState int

const (
	scanningBody scanState = iota
	scanningFrontmatter
	scanningTagList
)

// ReadTags extracts tags from a markdown document: a YAML frontmatter
// `tags:` entry (inline list or dash list) plus inline #tag tokens in the
// body.
func ReadTags(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var tags []string
	seen := map[string]struct{}{}

	add := func(tag string) {
		tag = normalizeTag(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	state := scanningBody
	first := true
	for scanner.Scan() {
		line := scanner.Text()

		if first {
			first = false
			if strings.TrimSpace(line) == "---" {
				state = scanningFrontmatter
				continue
			}
		}

		switch state {
		case scanningFrontmatter, scanningTagList:
			trimmed := strings.TrimSpace(line)
			if trimmed == "---" {
				state = scanningBody
				continue
			}
			if state == scanningTagList {
				if rest, ok := strings.CutPrefix(trimmed, "- "); ok {
					add(rest)
					continue
				}
				state = scanningFrontmatter
			}
			if rest, ok := strings.CutPrefix(trimmed, "tags:"); ok {
				rest = strings.TrimSpace(rest)
				if rest == "" {
					state = scanningTagList
					continue
				}
				for _, t := range strings.Split(strings.Trim(rest, "[]"), ",") {
					add(t)
				}
			}

		case scanningBody:
			for _, field := range strings.Fields(line) {
				if strings.HasPrefix(field, "#") && len(field) > 1 && field[1] != '#' {
					add(field)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}

// normalizeTag strips markers and surrounding punctuation and lowercases.
func normalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "#")
	tag = strings.Trim(tag, `"'.,;:!?()`)
	return strings.ToLower(tag)
}
