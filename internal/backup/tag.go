package backup

import (
	"regexp"
	"strings"
)

const backupTagPrefixConstant = "[backup] "

var backupTagPattern = regexp.MustCompile(`^\[backup\] (\S+)\s*$`)

// FormatBackupTag renders the provenance description stored on every backup repository.
func FormatBackupTag(sourceWebURL string) string {
	return backupTagPrefixConstant + strings.TrimSpace(sourceWebURL)
}

// ParseBackupTag extracts the linked source URL from a backup description.
func ParseBackupTag(description string) (string, bool) {
	matches := backupTagPattern.FindStringSubmatch(strings.TrimSpace(description))
	if matches == nil {
		return "", false
	}
	return matches[1], true
}
