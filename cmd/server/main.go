// Command server runs the seeded reference backend on a local port so posctl
// or a browser front end can be exercised without the production API.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/posclient/internal/middleware"
	"github.com/mmynk/posclient/internal/refserver"
	"github.com/mmynk/posclient/pkg/logging"
)

const (
	port = 8000
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup(getEnv("LOG_LEVEL", "info"))
	gin.SetMode(gin.ReleaseMode)

	addr := getEnv("SERVER_ADDR", fmt.Sprintf(":%d", port))
	publicURL := getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port))

	backend, err := refserver.New(refserver.Options{
		PublicURL: publicURL,
		Secret:    getEnv("JWT_SECRET", "dev-secret"),
		Logger:    logging.For("server"),
	})
	if err != nil {
		slog.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	h2cHandler := h2c.NewHandler(backend.Handler(middleware.CORS()), &http2.Server{})

	slog.Info("Reference backend starting", "address", addr, "api", publicURL+"/api")
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
