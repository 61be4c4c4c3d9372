package backup

import "strings"

const (
	repositorySuffixConstant   = ".git"
	pathSeparatorsConstant     = `/\:`
	trailingSeparatorsConstant = `/\`
)

// NormalizeName maps a raw repository name to the key used to match the same
// repository across hosts. Owner prefixes, scp-style host prefixes, casing,
// surrounding whitespace, trailing slashes and ".git" suffixes are discarded.
// The result is a fixed point: NormalizeName(NormalizeName(x)) == NormalizeName(x).
func NormalizeName(rawName string) string {
	current := rawName
	for {
		next := normalizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
}

func normalizeOnce(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimRight(trimmed, trailingSeparatorsConstant)
	if separatorIndex := strings.LastIndexAny(trimmed, pathSeparatorsConstant); separatorIndex >= 0 {
		trimmed = trimmed[separatorIndex+1:]
	}
	lowered := strings.ToLower(trimmed)
	return strings.TrimSuffix(lowered, repositorySuffixConstant)
}
