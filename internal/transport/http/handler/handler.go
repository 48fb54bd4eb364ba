// Package handler exposes the HTTP surface. Handlers parse and validate,
// services decide; no business rule lives here.
package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/internal/service"
)

// errStatus maps service and repository errors onto HTTP status codes.
func errStatus(err error) int {
	var te *domain.TransitionError
	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrPayoutNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAddressNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrProductNotSellable),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrPayoutTooLarge),
		errors.Is(err, service.ErrPayoutResolved):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotPayable),
		errors.As(err, &te):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errStatus(err)).JSON(fiber.Map{"error": err.Error()})
}
