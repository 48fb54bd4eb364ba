package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/repository"
	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type PaymentHandler struct {
	checkout service.CheckoutService
	webhook  service.WebhookService
	logger   *zap.Logger
}

func NewPaymentHandler(checkout service.CheckoutService, webhook service.WebhookService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		webhook:  webhook,
		logger:   logger,
	}
}

func (h *PaymentHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	orderID := c.Params("orderId")

	page, err := h.checkout.CreateSession(c.UserContext(), user.ID, orderID)
	if err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"create checkout session failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"session_id":         page.Session.ID,
		"checkout_url":       page.Session.URL,
		"order_id":           page.Order.OrderID,
		"total_amount":       page.Order.TotalAmount,
		"item_count":         page.Order.ItemCount,
		"items":              page.Order.Items,
		"customer":           page.Customer,
		"vendor":             page.Vendor,
		"shipping_addresses": page.Addresses,
	})
}

// Webhook receives provider callbacks. The raw body goes to signature
// verification untouched; parsing it here would break the check.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	sigHeader := c.Get("Stripe-Signature")

	if err := h.webhook.ProcessEvent(c.UserContext(), payload, sigHeader); err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"webhook processing failed",
			zap.Error(err),
		)

		// Non-2xx makes the provider redeliver, which is what we want for
		// transient failures. Events naming an order we do not have get a
		// 404 so the mismatch is visible on the provider side.
		status := fiber.StatusBadRequest
		if errors.Is(err, repository.ErrOrderNotFound) {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(fiber.Map{"error": "webhook processing failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
