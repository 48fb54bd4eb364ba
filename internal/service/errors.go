package service

import (
	"errors"

	"github.com/bristywardah/R-Nold/internal/repository"
)

var (
	ErrEmptyCart          = errors.New("cart has no active items")
	ErrProductNotSellable = errors.New("product is not approved for sale")
	ErrInsufficientStock  = repository.ErrInsufficientStock
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrEventMalformed     = errors.New("event is missing required payment data")
	ErrPayoutTooLarge     = errors.New("payout amount exceeds available earnings")
	ErrPayoutResolved     = errors.New("payout request is already resolved")
	ErrForbidden          = errors.New("operation not permitted for this user")
)
