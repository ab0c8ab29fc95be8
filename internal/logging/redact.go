package logging

import "strings"

// secretKeyPatterns flags attribute keys whose values must never reach
// a log sink. Server env overlays routinely carry API keys.
var secretKeyPatterns = []string{
	"TOKEN", "SECRET", "PASSWORD", "API_KEY", "APIKEY", "CREDENTIAL", "AUTH",
}

// tokenPrefixes catches values that are clearly tokens even when the
// key name does not indicate sensitivity.
var tokenPrefixes = []string{
	"ghp_", "gho_", "github_pat_", "sk-", "xoxb-", "xoxp-", "glpat-",
}

// shouldMask returns true if the attribute key looks sensitive.
func shouldMask(key string) bool {
	upper := strings.ToUpper(key)
	for _, pattern := range secretKeyPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// containsTokenPrefix returns true if the value starts with a known
// token prefix.
func containsTokenPrefix(value string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// maskValue redacts a sensitive value, keeping a short suffix so
// adjacent log lines remain distinguishable.
func maskValue(value string) string {
	if len(value) <= 4 {
		return "********"
	}
	return "****" + value[len(value)-4:]
}
