package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type PayoutHandler struct {
	payouts  service.PayoutService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPayoutHandler(payouts service.PayoutService, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts:  payouts,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *PayoutHandler) Earnings(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	summary, err := h.payouts.Earnings(c.UserContext(), user.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

type PayoutRequestInput struct {
	Amount        string `json:"amount" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,max=50"`
	Note          string `json:"note" validate:"max=500"`
}

func (h *PayoutHandler) Request(c *fiber.Ctx) error {
	input := new(PayoutRequestInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	user := middleware.CurrentUser(c)
	req, err := h.payouts.Request(c.UserContext(), user, amount, input.PaymentMethod, input.Note)
	if err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"payout request failed",
			zap.Int64("vendor_id", user.ID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(req)
}

func (h *PayoutHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	requests, err := h.payouts.List(c.UserContext(), user)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"payout_requests": requests})
}

type ResolvePayoutInput struct {
	Approve bool `json:"approve"`
}

func (h *PayoutHandler) Resolve(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	input := new(ResolvePayoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	user := middleware.CurrentUser(c)
	if err := h.payouts.Resolve(c.UserContext(), user, id, input.Approve); err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"resolve payout failed",
			zap.Int64("payout_id", id),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
