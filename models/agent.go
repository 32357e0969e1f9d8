package models

// WildcardTarget addresses every currently connected agent. The command
// server performs the fan-out itself; the console sends it as-is.
const WildcardTarget = "*"

// Agent is one connected client as reported by the command server's
// /api/list endpoint. The console only ever holds read-only snapshots.
type Agent struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname,omitempty"`
	OS       string `json:"os,omitempty"`
	Uptime   string `json:"uptime,omitempty"`
	CPU      string `json:"cpu,omitempty"`
	RAM      string `json:"ram,omitempty"`
	Version  string `json:"version,omitempty"`
}
