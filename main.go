package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"fleetconsole/api"
	"fleetconsole/config"
	"fleetconsole/remote"
	"fleetconsole/service"
)

// setupLogging creates a timestamped log file under log/ and mirrors all
// output to it. Returns the file handle (caller should defer Close()).
func setupLogging() (*os.File, error) {
	logDir := "log"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, timestamp+".log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("Logging to: %s", logPath)
	return logFile, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Printf("Warning: Failed to setup file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	serverURL := config.ServerURL()
	log.Printf("Starting Fleet Console (command server: %s)", serverURL)

	// The dispatch history survives restarts; everything else is ephemeral.
	var history *service.HistoryStore
	db, err := config.InitDatabase()
	if err != nil {
		log.Printf("Warning: dispatch history disabled: %v", err)
	} else {
		defer db.Close()
		history = service.NewHistoryStore(db)
	}

	session := service.NewSession()
	selection := service.NewSelection()
	gateway := remote.NewClient(serverURL, session)
	agents := service.NewAgentManager(gateway, session, selection, config.AgentPollInterval)
	dispatcher := service.NewDispatcher(gateway, session, agents, selection, history)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agents.Start(ctx)

	router := gin.Default()
	handlers := api.NewHandlers(gateway, session, agents, selection, dispatcher, history, serverURL)
	api.SetupRoutes(router, handlers)

	log.Printf("Console listening on http://localhost%s", config.ListenAddr)
	if err := router.Run(config.ListenAddr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
