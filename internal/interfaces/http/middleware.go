package http

import (
	"errors"
	"time"

	"github.com/Maxito7/agenda/internal/logger"
	"github.com/Maxito7/agenda/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
)

// RequestLogger registra cada petición y alimenta las métricas HTTP
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		// fasthttp reutiliza sus buffers: las etiquetas deben ser copias
		metrics.RecordHTTPRequest(utils.CopyString(c.Method()), utils.CopyString(c.Route().Path), status, latency)
		log.Zerolog().Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Msg("request")

		return err
	}
}

// MetricsHandler expone /metrics en formato Prometheus
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(metrics.Handler())
}
