package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/checkout"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/gateway"
	"github.com/ManuelReschke/PriceSync/internal/pkg/snapshot"
)

// statusFor maps domain errors onto an HTTP status and a short error code.
func statusFor(err error) (int, string) {
	var validationErr *catalog.ValidationError
	var apiErr *gateway.APIError

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, catalog.ErrInvalidRequest),
		errors.Is(err, checkout.ErrInvalidOrder),
		errors.Is(err, snapshot.ErrInvalid):
		return fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, checkout.ErrInvalidPlan),
		errors.Is(err, checkout.ErrAmountMismatch),
		errors.Is(err, catalog.ErrNonNumericPrice):
		return fiber.StatusUnprocessableEntity, "invalid_plan"
	case errors.Is(err, catalog.ErrPriceNotFound),
		errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, gateway.ErrOrderNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, docstore.ErrNotConfigured),
		errors.Is(err, docstore.ErrDatabaseAbsent),
		errors.Is(err, gateway.ErrNotConfigured):
		return fiber.StatusServiceUnavailable, "not_configured"
	case errors.As(err, &apiErr), errors.Is(err, gateway.ErrUnavailable):
		return fiber.StatusBadGateway, "gateway_error"
	default:
		return fiber.StatusInternalServerError, "internal_server_error"
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}
