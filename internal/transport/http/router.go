package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bristywardah/R-Nold/internal/auth"
	"github.com/bristywardah/R-Nold/internal/domain"
	"github.com/bristywardah/R-Nold/internal/transport/http/handler"
	"github.com/bristywardah/R-Nold/internal/transport/http/middleware"
)

type Handlers struct {
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	Notification *handler.NotificationHandler
	Payout       *handler.PayoutHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, authManager *auth.Manager) {
	// Signature verification is the webhook's authentication; it stays
	// outside the bearer-token group.
	app.Post("/webhooks/stripe", h.Payment.Webhook)

	api := app.Group("/api", middleware.NewAuthMiddleware(authManager))

	cart := api.Group("/cart")
	cart.Get("", h.Cart.View)
	cart.Post("/items", h.Cart.AddItem)
	cart.Patch("/items/:id", h.Cart.UpdateQuantity)
	cart.Patch("/items/:id/save", h.Cart.SaveForLater)
	cart.Delete("/items/:id", h.Cart.Remove)

	orders := api.Group("/orders")
	orders.Post("", h.Order.Create)
	orders.Get("", h.Order.List)
	orders.Get("/:orderId", h.Order.Get)
	orders.Post("/:orderId/cancel", h.Order.Cancel)
	orders.Post("/:orderId/address", h.Order.AttachShippingAddress)
	orders.Post("/:orderId/checkout", h.Payment.CreateCheckoutSession)

	vendorOrAdmin := middleware.NewRequireRoles(domain.RoleVendor, domain.RoleAdmin)
	orders.Patch("/:orderId/status", vendorOrAdmin, h.Order.SetStatus)
	orders.Patch("/bulk-status", vendorOrAdmin, h.Order.BulkSetStatus)

	api.Post("/addresses", h.Order.CreateShippingAddress)

	notifications := api.Group("/notifications")
	notifications.Get("", h.Notification.List)
	notifications.Post("/chat", h.Notification.Chat)
	notifications.Post("/seen", h.Notification.MarkAllSeen)
	notifications.Post("/:id/seen", h.Notification.MarkSeen)
	notifications.Delete("/:id", h.Notification.Delete)

	payouts := api.Group("/payouts", middleware.NewRequireRoles(domain.RoleVendor, domain.RoleAdmin))
	payouts.Get("/earnings", middleware.NewRequireRoles(domain.RoleVendor), h.Payout.Earnings)
	payouts.Post("", middleware.NewRequireRoles(domain.RoleVendor), h.Payout.Request)
	payouts.Get("", h.Payout.List)
	payouts.Post("/:id/resolve", middleware.NewRequireRoles(domain.RoleAdmin), h.Payout.Resolve)
}
