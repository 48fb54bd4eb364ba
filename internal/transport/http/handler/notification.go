package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bristywardah/R-Nold/internal/service"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
)

type NotificationHandler struct {
	notifications service.NotificationService
	validate      *validator.Validate
	logger        *zap.Logger
}

func NewNotificationHandler(notifications service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		validate:      validator.New(),
		logger:        logger,
	}
}

type ChatMessageInput struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Message    string `json:"message" validate:"required"`
}

// Chat notifies another user about a direct message. Message threading lives
// elsewhere; this only produces the notification line.
func (h *NotificationHandler) Chat(c *fiber.Ctx) error {
	var input ChatMessageInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user := middleware.CurrentUser(c)
	if err := h.notifications.NotifyChat(c.UserContext(), user, input.ReceiverID, input.Message); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	onlyUnseen := c.QueryBool("unseen")

	notifications, err := h.notifications.List(c.UserContext(), user.ID, onlyUnseen)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) MarkSeen(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	user := middleware.CurrentUser(c)
	if err := h.notifications.MarkSeen(c.UserContext(), id, user.ID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *NotificationHandler) MarkAllSeen(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.notifications.MarkAllSeen(c.UserContext(), user.ID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Id is invalid"})
	}

	user := middleware.CurrentUser(c)
	if err := h.notifications.Delete(c.UserContext(), id, user.ID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}
