// Package scrub redacts credential-shaped fragments from text before it
// reaches a log file or the console.
package scrub

import "regexp"

// Redacted is the marker substituted for every matched credential.
const Redacted = "[REDACTED]"

// Patterns are applied in order: key/value shapes first so the value is
// consumed in the same match, then bare tokens.
var (
	// apiKeyPattern matches "api_key = value" and "api-key: value" shapes.
	apiKeyPattern = regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*\S+`)

	// authPattern matches "authorization = value" shapes. An optional
	// Bearer scheme is folded into the match so the token that follows it
	// cannot survive on its own.
	authPattern = regexp.MustCompile(`(?i)\bauthorization\s*[:=]\s*(?:bearer\s+)?\S+`)

	// bearerPattern matches bare "Bearer <token>" fragments.
	bearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)

	// tokenPattern matches tokens with a recognizable secret prefix:
	// service keys (sm_), sk-/sk_ and rk_/pk_ style API keys, GitHub
	// tokens (ghp_), and Slack tokens (xoxb- etc).
	tokenPattern = regexp.MustCompile(`\b(?:sm_|sk[-_]|rk_|pk_|ghp_|xox[a-z]-)[A-Za-z0-9_-]+`)
)

// Secrets returns s with every credential-shaped fragment replaced by a
// fixed redaction marker. Text without credentials is returned unchanged.
func Secrets(s string) string {
	s = apiKeyPattern.ReplaceAllString(s, "api_key="+Redacted)
	s = authPattern.ReplaceAllString(s, "authorization="+Redacted)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+Redacted)
	s = tokenPattern.ReplaceAllString(s, Redacted)
	return s
}
