package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/app"
	"github.com/hankai/housecup/internal/handlers"
)

func main() {
	service, err := app.NewService("config.toml")
	if err != nil {
		logger.Error.Fatalf("Failed to init service: %v", err)
	}
	defer service.Close()

	pointsHandler := handlers.NewPointsHandler(service)

	http.HandleFunc("POST /api/v1/login", pointsHandler.HandleLogin)
	http.HandleFunc("POST /api/v1/logout", pointsHandler.HandleLogout)
	http.HandleFunc("GET /api/v1/scoreboard", pointsHandler.HandleScoreboard)
	http.HandleFunc("GET /api/v1/updates", pointsHandler.HandleUpdates)
	http.HandleFunc("POST /api/v1/adjustments", pointsHandler.HandleAdjustment)
	http.HandleFunc("POST /api/v1/undo", pointsHandler.HandleUndo)
	http.HandleFunc("POST /api/v1/reset", pointsHandler.HandleReset)

	http.HandleFunc("GET /admin", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "static/index.html")
	})

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting housecup server on %s", service.Config.Server.Port)
	logger.Debug.Printf("Quota mode: %s", service.Config.Quota.Mode)
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Housecup server failed: %v", err)
	}
}
