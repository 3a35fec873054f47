// Package obslog provides the diagnostic logger shared by the resolver,
// installer, registry, cache, and lock-file components: a thin,
// subsystem-tagged wrapper over the standard log package that redacts
// credential-shaped values before they reach the sink. Grounded on
// internal/packagemanager/security_logging.go's SecurityLogger, scaled
// down to this project's needs (no HTML/SQL payload sanitization — this
// is a diagnostic logger, not an input validator).
package obslog

import (
	"log"
	"strings"
)

var redactPatterns = []string{
	"token", "password", "passwd", "secret", "auth", "credential", "bearer", "authorization",
}

// Logger is a subsystem-scoped diagnostic sink.
type Logger struct {
	subsystem string
	out       *log.Logger
}

// New returns a Logger that tags every line with subsystem, e.g. "resolver".
func New(subsystem string) *Logger {
	return &Logger{subsystem: subsystem, out: log.Default()}
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.out.Printf("[%s] "+redact(format), prependSubsystem(l.subsystem, args)...)
}

// Warnf logs a warning — used for cycle diagnostics and partial-failure notices.
func (l *Logger) Warnf(format string, args ...any) {
	l.out.Printf("[%s][warn] "+redact(format), prependSubsystem(l.subsystem, args)...)
}

// Errorf logs an error that was contained (subtree abandoned, package skipped).
func (l *Logger) Errorf(format string, args ...any) {
	l.out.Printf("[%s][error] "+redact(format), prependSubsystem(l.subsystem, args)...)
}

func prependSubsystem(subsystem string, args []any) []any {
	return append([]any{subsystem}, args...)
}

// redact replaces a format string whose literal text contains a
// credential-shaped word with a fixed placeholder message; it does not
// inspect args (those are the caller's values,
// which should never themselves be secrets in this log surface — the
// registry auth token is the one exception, scrubbed at the source in
// the registry client rather than here).
func redact(format string) string {
	lower := strings.ToLower(format)

	for _, p := range redactPatterns {
		if strings.Contains(lower, p) {
			return "[redacted log message]"
		}
	}

	return format
}

// RedactToken returns a short, non-reversible placeholder for a secret
// value, safe to interpolate into a log line (e.g. a registry auth token).
func RedactToken(token string) string {
	if token == "" {
		return ""
	}

	if len(token) <= 4 {
		return "****"
	}

	return token[:2] + "****" + token[len(token)-2:]
}
