package cli

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var secretNamePattern = regexp.MustCompile(`(?i)(PASSWORD|PASSWD|SECRET|TOKEN|API_?KEY|ACCESS_KEY|PRIVATE_KEY|CREDENTIAL)`)

// redactEnv masks the values of VAR=VALUE entries whose names look like
// they hold secrets, so they can be logged.
func redactEnv(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, len(entries))
	for i, entry := range entries {
		name, _, set := strings.Cut(entry, "=")
		if set && secretNamePattern.MatchString(name) {
			entry = name + "=" + redactedPlaceholder
		}
		out[i] = entry
	}
	return out
}
