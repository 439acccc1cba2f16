package handler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

var errBrokerDown = errors.New("broker connection closed")

// Probe is one dependency checked by /readyz.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

func PostgresProbe(sqlDB *sql.DB) Probe {
	return Probe{Name: "postgres", Check: sqlDB.PingContext}
}

// RedisProbe returns a zero Probe for a nil client, which readiness skips.
func RedisProbe(rdb *redis.Client) Probe {
	if rdb == nil {
		return Probe{}
	}
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
}

// BrokerProbe reports the queue connection state without dialing.
func BrokerProbe(healthy func() bool) Probe {
	return Probe{Name: "rabbitmq", Check: func(context.Context) error {
		if !healthy() {
			return errBrokerDown
		}
		return nil
	}}
}

// RegisterHealthRoutes mounts /livez and /readyz.
func RegisterHealthRoutes(app fiber.Router, probes ...Probe) {
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/readyz", readyzHandler(probes))
}

func readyzHandler(probes []Probe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		checks := make(fiber.Map, len(probes))
		statusCode := fiber.StatusOK
		for _, p := range probes {
			if p.Check == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				checks[p.Name] = "down"
				statusCode = fiber.StatusServiceUnavailable
				continue
			}
			checks[p.Name] = "ok"
		}

		status := "ready"
		if statusCode != fiber.StatusOK {
			status = "not_ready"
		}
		return c.Status(statusCode).JSON(fiber.Map{"status": status, "checks": checks})
	}
}
