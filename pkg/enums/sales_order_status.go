package enums

import "fmt"

// SalesOrderStatus is the lifecycle state of a customer order.
type SalesOrderStatus string

const (
	SalesOrderStatusPending    SalesOrderStatus = "pending"
	SalesOrderStatusProcessing SalesOrderStatus = "processing"
	SalesOrderStatusShipped    SalesOrderStatus = "shipped"
	SalesOrderStatusCancelled  SalesOrderStatus = "cancelled"
)

var validSalesOrderStatuses = []SalesOrderStatus{
	SalesOrderStatusPending,
	SalesOrderStatusProcessing,
	SalesOrderStatusShipped,
	SalesOrderStatusCancelled,
}

// IsValid reports whether the value matches the canonical sales order status enum.
func (s SalesOrderStatus) IsValid() bool {
	for _, candidate := range validSalesOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the order still represents unshipped demand.
func (s SalesOrderStatus) IsOpen() bool {
	return s != SalesOrderStatusShipped && s != SalesOrderStatusCancelled
}

// ParseSalesOrderStatus converts raw input into SalesOrderStatus.
func ParseSalesOrderStatus(value string) (SalesOrderStatus, error) {
	for _, candidate := range validSalesOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales order status %q", value)
}
