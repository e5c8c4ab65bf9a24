package gitrepo

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// Markdown is a content file split into its YAML frontmatter and body.
type Markdown struct {
	Frontmatter map[string]any
	Body        string
}

// ParseMarkdown splits a "---" delimited YAML header from the body. Files
// without a header yield an empty frontmatter and the whole text as body.
func ParseMarkdown(data []byte) (Markdown, error) {
	header, body, ok := splitFrontmatter(string(data))
	doc := Markdown{Frontmatter: map[string]any{}, Body: body}
	if !ok {
		return doc, nil
	}
	if strings.TrimSpace(header) == "" {
		return doc, nil
	}
	if err := yaml.Unmarshal([]byte(header), &doc.Frontmatter); err != nil {
		return Markdown{}, fmt.Errorf("decode frontmatter: %w", err)
	}
	if doc.Frontmatter == nil {
		doc.Frontmatter = map[string]any{}
	}
	return doc, nil
}

// RenderMarkdown writes frontmatter as a YAML header followed by the body.
// frontmatter may be a map or a struct with yaml tags.
func RenderMarkdown(frontmatter any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontmatter); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString(frontmatterDelimiter + "\n")
	buf.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func splitFrontmatter(text string) (string, string, bool) {
	firstNL := strings.IndexByte(text, '\n')
	if firstNL < 0 || strings.TrimRight(text[:firstNL], "\r") != frontmatterDelimiter {
		return "", text, false
	}
	rest := text[firstNL+1:]
	offset := 0
	for {
		end := strings.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if strings.TrimRight(line, "\r") == frontmatterDelimiter {
			body := ""
			if end >= 0 {
				body = rest[offset+end+1:]
			}
			return rest[:offset], body, true
		}
		if end < 0 {
			return "", text, false
		}
		offset += end + 1
	}
}
