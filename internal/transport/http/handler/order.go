package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
	"github.com/bristywardah/R-Nold/pkg/ctxlog"
)

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateOrderInput struct {
	DeliveryType         string `json:"delivery_type" validate:"required,oneof=standard express pickup"`
	DeliveryInstructions string `json:"delivery_instructions" validate:"max=500"`
	PromoCode            string `json:"promo_code" validate:"max=50"`
	DiscountAmount       string `json:"discount_amount"`
	DeliveryFee          string `json:"delivery_fee"`
	PaymentMethod        string `json:"payment_method" validate:"max=50"`
	Notes                string `json:"notes" validate:"max=1000"`

	// Set only on the single-product path.
	ProductID int64 `json:"product_id" validate:"omitempty,gt=0"`
	Quantity  int64 `json:"quantity" validate:"omitempty,gt=0"`
}

func (in *CreateOrderInput) toRequest() (service.CreateOrderRequest, error) {
	req := service.CreateOrderRequest{
		DeliveryType:         domain.DeliveryType(in.DeliveryType),
		DeliveryInstructions: in.DeliveryInstructions,
		PromoCode:            in.PromoCode,
		DiscountAmount:       decimal.Zero,
		PaymentMethod:        in.PaymentMethod,
		Notes:                in.Notes,
	}

	if in.DiscountAmount != "" {
		d, err := decimal.NewFromString(in.DiscountAmount)
		if err != nil || d.IsNegative() {
			return req, fiber.NewError(fiber.StatusBadRequest, "invalid discount_amount")
		}
		req.DiscountAmount = d
	}
	if in.DeliveryFee != "" {
		fee, err := decimal.NewFromString(in.DeliveryFee)
		if err != nil || fee.IsNegative() {
			return req, fiber.NewError(fiber.StatusBadRequest, "invalid delivery_fee")
		}
		req.DeliveryFeeOverride = &fee
	}
	return req, nil
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	input := new(CreateOrderInput)

	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req, err := input.toRequest()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)

	var order *domain.Order
	if input.ProductID > 0 {
		quantity := input.Quantity
		if quantity == 0 {
			quantity = 1
		}
		order, err = h.orders.CreateSingleProduct(c.UserContext(), user.ID, input.ProductID, quantity, req)
	} else {
		order, err = h.orders.CreateFromCart(c.UserContext(), user.ID, req)
	}
	if err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"create order failed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	order, err := h.orders.Get(c.UserContext(), user, c.Params("orderId"))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	orders, err := h.orders.List(c.UserContext(), user)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"orders": orders})
}

type SetStatusInput struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) SetStatus(c *fiber.Ctx) error {
	input := new(SetStatusInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	next, err := domain.ParseOrderStatus(input.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	orderID := c.Params("orderId")
	if err := h.orders.SetStatus(c.UserContext(), user, orderID, next); err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"set order status failed",
			zap.String("order_id", orderID),
			zap.String("status", input.Status),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

type BulkStatusInput struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1,dive,required"`
	Status   string   `json:"order_status" validate:"required"`
}

func (h *OrderHandler) BulkSetStatus(c *fiber.Ctx) error {
	input := new(BulkStatusInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	next, err := domain.ParseOrderStatus(input.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	result, err := h.orders.BulkSetStatus(c.UserContext(), user, input.OrderIDs, next)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	orderID := c.Params("orderId")

	if err := h.orders.Cancel(c.UserContext(), user.ID, orderID); err != nil {
		ctxlog.Warn(
			c.UserContext(),
			h.logger,
			"cancel order failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)

		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

type ShippingAddressInput struct {
	FullName      string `json:"full_name" validate:"required,max=100"`
	PhoneNumber   string `json:"phone_number" validate:"required,max=30"`
	Email         string `json:"email" validate:"omitempty,email"`
	StreetAddress string `json:"street_address" validate:"required,max=200"`
	City          string `json:"city" validate:"required,max=100"`
	ZipCode       string `json:"zip_code" validate:"required,max=20"`
}

func (h *OrderHandler) CreateShippingAddress(c *fiber.Ctx) error {
	input := new(ShippingAddressInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	addr := &domain.ShippingAddress{
		FullName:      input.FullName,
		PhoneNumber:   input.PhoneNumber,
		Email:         input.Email,
		StreetAddress: input.StreetAddress,
		City:          input.City,
		ZipCode:       input.ZipCode,
	}
	if err := h.orders.CreateShippingAddress(c.UserContext(), user.ID, addr); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(addr)
}

type AttachAddressInput struct {
	AddressID int64 `json:"address_id" validate:"required,gt=0"`
}

func (h *OrderHandler) AttachShippingAddress(c *fiber.Ctx) error {
	input := new(AttachAddressInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	if err := h.orders.AttachShippingAddress(c.UserContext(), user.ID, c.Params("orderId"), input.AddressID); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}
