package models

import "strings"

// Severity is a coarse display class for one log line. It is inferred from
// the line's content and used only for coloring; it carries no semantics.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityNoise   Severity = "noise"
)

// LogLine is one line of an agent's log feed.
type LogLine struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// ClassifyLine tags a raw line with a severity. The substring rules mirror
// what the agents actually emit: embedded-webserver chatter is noise,
// ">>>" prefixes are console-injected markers, and the agents log a mix of
// English and French status words.
func ClassifyLine(text string) LogLine {
	line := LogLine{Text: text, Severity: SeverityInfo}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "mongoose.c"):
		line.Severity = SeverityNoise
	case strings.HasPrefix(text, ">>>"):
		line.Severity = SeverityWarning
	case strings.Contains(lower, "error") || strings.Contains(lower, "erreur"):
		line.Severity = SeverityError
	case strings.Contains(lower, "success") || strings.Contains(text, "établie") || strings.Contains(text, "sauvegardé"):
		line.Severity = SeveritySuccess
	}
	return line
}
