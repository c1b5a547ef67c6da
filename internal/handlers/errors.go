package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"certfresh/internal/freshness"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// ErrorHandler turns handler errors into JSON bodies. Transport failures
// are the upstream's fault and map to 502, or 504 on timeout.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			te *freshness.TransportError
			he *freshness.HandshakeError
			fe *fiber.Error
		)

		switch {
		case errors.As(err, &te):
			code := fiber.StatusBadGateway
			if te.Reason == freshness.ReasonTimeout {
				code = fiber.StatusGatewayTimeout
			}
			log.WithFields(logrus.Fields{
				"hostname": sanitizeLogInput(te.Hostname),
				"reason":   te.Reason,
			}).WithError(te.Err).Warn("could not reach host")
			return c.Status(code).JSON(errorBody{Error: te.Error(), Reason: string(te.Reason)})

		case errors.As(err, &he):
			log.WithFields(logrus.Fields{
				"hostname": sanitizeLogInput(he.Hostname),
				"reason":   he.Reason,
			}).Info("TLS handshake rejected")
			return c.Status(fiber.StatusBadGateway).JSON(errorBody{Error: he.Error(), Reason: string(he.Reason)})

		case errors.Is(err, freshness.ErrThresholdOutOfRange):
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})

		case errors.As(err, &fe):
			return c.Status(fe.Code).JSON(errorBody{Error: fe.Message})

		default:
			log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: "internal server error"})
		}
	}
}
