package repository

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrCartLineNotFound     = errors.New("cart line not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrPayoutNotFound       = errors.New("payout request not found")
	ErrAddressNotFound      = errors.New("shipping address not found")
	ErrInsufficientStock    = errors.New("insufficient stock for requested quantity")
)
