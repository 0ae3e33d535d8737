package enums

import "fmt"

// AutoOrderPolicy controls whether an inbound procurement sync creates a
// pending production order for the received lot.
type AutoOrderPolicy string

const (
	// AutoOrderPolicyNewLot creates an order only when the sync created the
	// lot and the item has at least one process defined.
	AutoOrderPolicyNewLot AutoOrderPolicy = "new_lot"
	// AutoOrderPolicyAlways creates an order on every inbound sync.
	AutoOrderPolicyAlways AutoOrderPolicy = "always"
	// AutoOrderPolicyNever disables automatic orders.
	AutoOrderPolicyNever AutoOrderPolicy = "never"
)

var validAutoOrderPolicies = []AutoOrderPolicy{
	AutoOrderPolicyNewLot,
	AutoOrderPolicyAlways,
	AutoOrderPolicyNever,
}

// IsValid reports whether the value matches the canonical policy enum.
func (p AutoOrderPolicy) IsValid() bool {
	for _, candidate := range validAutoOrderPolicies {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseAutoOrderPolicy converts raw input into AutoOrderPolicy.
func ParseAutoOrderPolicy(value string) (AutoOrderPolicy, error) {
	for _, candidate := range validAutoOrderPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auto order policy %q", value)
}
