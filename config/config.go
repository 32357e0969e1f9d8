package config

import (
	"os"
	"time"
)

const (
	// ListenAddr is where the console's own HTTP server binds.
	ListenAddr = ":8080"

	// AgentPollInterval is how often the roster is refreshed. There is no
	// push channel for the agent list; it must be polled.
	AgentPollInterval = 10 * time.Second

	defaultServerURL = "http://localhost:9090"
)

// ServerURL returns the base URL of the remote command server.
func ServerURL() string {
	if v := os.Getenv("FLEET_SERVER_URL"); v != "" {
		return v
	}
	return defaultServerURL
}
