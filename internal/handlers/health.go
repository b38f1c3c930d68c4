package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"postroom/internal/storage"
)

type HealthDeps struct {
	DB          *sql.DB
	Storage     storage.Storage
	RabbitMQURL string
}

// Health reports the state of each dependency. The database and object
// store are required; a broker outage only degrades the service because
// posts still work without notifications.
func Health(deps *HealthDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{
			"db": "ok",
			"s3": "ok",
		}
		var unhealthy, degraded bool

		if err := deps.DB.PingContext(ctx); err != nil {
			checks["db"] = err.Error()
			unhealthy = true
		}
		if _, err := deps.Storage.Exists(ctx, "__health__"); err != nil {
			checks["s3"] = err.Error()
			unhealthy = true
		}

		switch {
		case deps.RabbitMQURL == "":
			checks["rabbitmq"] = "skipped"
		default:
			if conn, err := amqp.Dial(deps.RabbitMQURL); err != nil {
				checks["rabbitmq"] = err.Error()
				degraded = true
			} else {
				_ = conn.Close()
				checks["rabbitmq"] = "ok"
			}
		}

		status := "healthy"
		code := http.StatusOK
		switch {
		case unhealthy:
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		case degraded:
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
