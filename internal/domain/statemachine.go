package domain

import "fmt"

// Trigger is the closed set of events that may move an order between states.
// Every mutation of order_status/payment_status goes through Apply or
// ValidateOrderStatusChange; call sites never re-derive transition rules.
type Trigger string

const (
	TriggerCheckoutCompleted Trigger = "checkout_completed"
	TriggerCheckoutExpired   Trigger = "checkout_expired"
	TriggerPaymentFailed     Trigger = "payment_failed"
	TriggerVendorShipped     Trigger = "vendor_shipped"
	TriggerDelivered         Trigger = "delivered"
	TriggerCancelled         Trigger = "cancelled"
	TriggerRefunded          Trigger = "refunded"
)

// TransitionError reports a rejected transition; terminal states reject
// everything rather than silently ignoring the attempt.
type TransitionError struct {
	OrderID string
	From    string
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: no transition %q from state %q", e.OrderID, e.Trigger, e.From)
}

func orderStatusTerminal(s OrderStatus) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func paymentStatusTerminal(s PaymentStatus) bool {
	return s != PaymentStatusPending
}

// Apply computes the next (order_status, payment_status) pair for a trigger.
// Replayed triggers that would land on the state the order is already in are
// accepted as no-ops, which is what makes at-least-once webhook delivery safe.
func Apply(o *Order, trigger Trigger) (OrderStatus, PaymentStatus, error) {
	os, ps := o.OrderStatus, o.PaymentStatus

	switch trigger {
	case TriggerCheckoutCompleted:
		if os == OrderStatusProcessing && ps == PaymentStatusPaid {
			return os, ps, nil // replay
		}
		if orderStatusTerminal(os) || paymentStatusTerminal(ps) {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusProcessing, PaymentStatusPaid, nil

	case TriggerCheckoutExpired:
		if os == OrderStatusCancelled && ps == PaymentStatusCancelled {
			return os, ps, nil
		}
		if orderStatusTerminal(os) || paymentStatusTerminal(ps) {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusCancelled, PaymentStatusCancelled, nil

	case TriggerPaymentFailed:
		if os == OrderStatusCancelled && ps == PaymentStatusFailed {
			return os, ps, nil
		}
		if orderStatusTerminal(os) || paymentStatusTerminal(ps) {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusCancelled, PaymentStatusFailed, nil

	case TriggerVendorShipped:
		if os != OrderStatusProcessing {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusShipped, ps, nil

	case TriggerDelivered:
		if os != OrderStatusShipped {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusDelivered, ps, nil

	case TriggerCancelled:
		if os != OrderStatusPending && os != OrderStatusProcessing {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(os), Trigger: trigger}
		}
		return OrderStatusCancelled, ps, nil

	case TriggerRefunded:
		if ps != PaymentStatusPaid {
			return "", "", &TransitionError{OrderID: o.OrderID, From: string(ps), Trigger: trigger}
		}
		return os, PaymentStatusRefunded, nil
	}

	return "", "", fmt.Errorf("unknown trigger %q", trigger)
}

// validNext encodes the order_status graph for direct vendor/admin updates.
var validNext = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// ValidateOrderStatusChange guards explicit status sets (single and bulk
// vendor/admin updates). Setting the current status again is allowed.
func ValidateOrderStatusChange(o *Order, next OrderStatus) error {
	if o.OrderStatus == next {
		return nil
	}
	for _, allowed := range validNext[o.OrderStatus] {
		if allowed == next {
			return nil
		}
	}
	return &TransitionError{OrderID: o.OrderID, From: string(o.OrderStatus), Trigger: Trigger("set_" + string(next))}
}
