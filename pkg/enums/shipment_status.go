package enums

import "fmt"

// ShipmentStatus is the lifecycle state of a shipment line.
type ShipmentStatus string

const (
	ShipmentStatusPlanned   ShipmentStatus = "planned"
	ShipmentStatusShipped   ShipmentStatus = "shipped"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusPlanned,
	ShipmentStatusShipped,
	ShipmentStatusCancelled,
}

// IsValid reports whether the value matches the canonical shipment status enum.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}
