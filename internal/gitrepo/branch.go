package gitrepo

import (
	"regexp"
	"strings"
)

// MaxBranchNameLength is the hosting platform's ceiling for ref names
// created through this engine.
const MaxBranchNameLength = 100

var (
	invalidBranchChars = regexp.MustCompile(`[^a-zA-Z0-9_/-]`)
	repeatedHyphens    = regexp.MustCompile(`-{2,}`)
)

// SanitizeBranchName turns arbitrary input into a legal branch name. The
// result only contains [a-zA-Z0-9-_/], has no leading or trailing hyphen, no
// leading slash, and is at most MaxBranchNameLength bytes long. It may be
// empty when the input has no usable characters.
func SanitizeBranchName(name string) string {
	sanitized := invalidBranchChars.ReplaceAllString(name, "-")
	sanitized = repeatedHyphens.ReplaceAllString(sanitized, "-")
	sanitized = trimBranchName(sanitized)
	if len(sanitized) > MaxBranchNameLength {
		sanitized = trimBranchName(sanitized[:MaxBranchNameLength])
	}
	return sanitized
}

func trimBranchName(name string) string {
	for {
		trimmed := strings.TrimLeft(strings.Trim(name, "-"), "/")
		if trimmed == name {
			return trimmed
		}
		name = trimmed
	}
}
