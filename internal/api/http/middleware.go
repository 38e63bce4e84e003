package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tracklite-io/tracklite/internal/observability"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// NewErrorHandler renders every error through the domain taxonomy so
// clients always see a stable {code, message, details} shape.
func NewErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code := apperrors.CodeInternal
			switch fiberErr.Code {
			case http.StatusUnauthorized:
				code = apperrors.CodeUnauthorized
			case http.StatusForbidden:
				code = apperrors.CodeForbidden
			case http.StatusNotFound:
				code = apperrors.CodeNotFound
			case http.StatusMethodNotAllowed, http.StatusBadRequest:
				code = apperrors.CodeValidation
			}
			metrics.RecordError(c.Path(), c.Method(), code)
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiber.Map{"code": code, "message": fiberErr.Message},
			})
		}

		domainErr := apperrors.ToDomainError(err)
		if domainErr.Code == apperrors.CodeInternal {
			logger.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

		body := fiber.Map{"code": domainErr.Code, "message": domainErr.Message}
		if len(domainErr.Details) > 0 {
			body["details"] = domainErr.Details
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}

// RecoverMiddleware turns panics into INTERNAL_ERROR responses instead of
// dropping the connection.
func RecoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Path()))
				err = apperrors.NewInternalError(nil)
			}
		}()
		return c.Next()
	}
}

// RegisterMiddlewares installs the global middleware chain.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics) {
	app.Use(RecoverMiddleware(logger))
	app.Use(observability.RequestLogger(logger, metrics))
}
