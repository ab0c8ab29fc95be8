package transport

import (
	"regexp"
	"strings"
)

// benignStderrPrefixes are package-manager notices that servers print
// while starting up. They never indicate a fault.
var benignStderrPrefixes = []string{
	"npm WARN",
	"npm notice",
	"npm info",
	"added ",
	"audited ",
	"found 0 vulnerabilities",
	"up to date",
}

// readyBannerPattern matches server readiness banners.
var readyBannerPattern = regexp.MustCompile(`(?i)running on stdio`)

// connectionErrorPattern matches stderr lines that warrant
// reconnection consideration. Everything else is recorded but does not
// escalate.
var connectionErrorPattern = regexp.MustCompile(`(?i)connection|econnrefused|timeout|network`)

// IsBenignStderr reports whether a stderr line is informational noise
// rather than an error.
func IsBenignStderr(line string) bool {
	for _, p := range benignStderrPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return readyBannerPattern.MatchString(line)
}

// IsConnectionError reports whether a non-benign stderr line should
// trigger reconnection consideration.
func IsConnectionError(line string) bool {
	return connectionErrorPattern.MatchString(line)
}
