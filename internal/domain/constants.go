package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
	RoleDriver   = "DRIVER"
)

// Order statuses. Only pending -> paid is driven by the payment flow.
const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusDispatched = "dispatched"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusDispatched,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

func ValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

const (
	PaymentMethodMpesa         = "mpesa"
	PaymentMethodPayOnDelivery = "pay_on_delivery"
)

// Admin notification types.
const (
	NotificationNewOrder       = "new_order"
	NotificationOrderDelivered = "order_delivered"
)

// Delivery assignment steps, in order.
const (
	DeliveryAssigned  = "assigned"
	DeliveryPickedUp  = "picked_up"
	DeliveryInTransit = "in_transit"
	DeliveryDelivered = "delivered"
)

var DeliverySteps = []string{DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit, DeliveryDelivered}

// NextDeliveryStep returns the step after current, or "" when current is last or unknown.
func NextDeliveryStep(current string) string {
	for i, s := range DeliverySteps {
		if s == current && i+1 < len(DeliverySteps) {
			return DeliverySteps[i+1]
		}
	}
	return ""
}

const Currency = "KES"
