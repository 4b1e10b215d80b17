package main

import (
	"fmt"
	"net/http"

	"github.com/soloassist/soloassist-go/internal/assistant"
	"github.com/soloassist/soloassist-go/internal/config"
	"github.com/soloassist/soloassist-go/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	engine := assistant.NewOpenAIEngine(cfg.LLM)
	server := assistant.NewServer(engine, cfg.Assistant)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting assistant backend", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, server.Routes()); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}
