package execshell

import (
	"regexp"
	"strings"
)

const (
	redactedSecretConstant       = "***"
	urlSchemeMarkerConstant      = "://"
	credentialURLPatternConstant = `([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s:]+(:[^/@\s]*)?@`
)

var credentialURLPattern = regexp.MustCompile(credentialURLPatternConstant)

// RedactArguments returns a copy of arguments with credentials embedded in URLs masked.
// HTTPS push URLs may carry tokens that must not reach logs or errors.
func RedactArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}
	redacted := make([]string, len(arguments))
	for index, argument := range arguments {
		redacted[index] = RedactText(argument)
	}
	return redacted
}

// RedactText masks URL userinfo appearing anywhere inside text.
func RedactText(text string) string {
	if !strings.Contains(text, urlSchemeMarkerConstant) {
		return text
	}
	return credentialURLPattern.ReplaceAllString(text, "${1}"+redactedSecretConstant+"@")
}
