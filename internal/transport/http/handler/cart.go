package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type CartHandler struct {
	carts    service.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		validate: validator.New(),
		logger:   logger,
	}
}

type AddCartItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type UpdateCartItemInput struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

type SaveForLaterInput struct {
	Saved bool `json:"saved"`
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	view, err := h.carts.View(c.UserContext(), user.ID)
	if err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"cart view failed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(view)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	input := new(AddCartItemInput)

	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	line, err := h.carts.AddItem(c.UserContext(), user.ID, input.ProductID, input.Quantity)
	if err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"add cart item failed",
			zap.Int64("user_id", user.ID),
			zap.Int64("product_id", input.ProductID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(line)
}

func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	lineID, err := lineIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	input := new(UpdateCartItemInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	if err := h.carts.UpdateQuantity(c.UserContext(), user.ID, lineID, input.Quantity); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *CartHandler) SaveForLater(c *fiber.Ctx) error {
	lineID, err := lineIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	input := new(SaveForLaterInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	user := middleware.CurrentUser(c)
	if err := h.carts.SaveForLater(c.UserContext(), user.ID, lineID, input.Saved); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	lineID, err := lineIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	user := middleware.CurrentUser(c)
	if err := h.carts.Remove(c.UserContext(), user.ID, lineID); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func lineIDParam(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
