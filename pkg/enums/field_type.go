package enums

import "fmt"

// FieldType is the closed set of annotation capture variants. Each variant
// carries its own validation and ledger-posting behavior in the production
// package; new variants must be added here first.
type FieldType string

const (
	FieldTypeNumber           FieldType = "number"
	FieldTypeText             FieldType = "text"
	FieldTypeBoolean          FieldType = "boolean"
	FieldTypeSignature        FieldType = "signature"
	FieldTypeTimestamp        FieldType = "timestamp"
	FieldTypeMaterial         FieldType = "material"
	FieldTypeMaterialLot      FieldType = "material_lot"
	FieldTypeMaterialQuantity FieldType = "material_quantity"
	FieldTypeInputQuantity    FieldType = "input_quantity"
	FieldTypeGoodQuantity     FieldType = "good_quantity"
	FieldTypeDefectiveQty     FieldType = "defective_quantity"
	FieldTypePhoto            FieldType = "photo"
	FieldTypeProductionLot    FieldType = "production_lot"
)

var validFieldTypes = []FieldType{
	FieldTypeNumber,
	FieldTypeText,
	FieldTypeBoolean,
	FieldTypeSignature,
	FieldTypeTimestamp,
	FieldTypeMaterial,
	FieldTypeMaterialLot,
	FieldTypeMaterialQuantity,
	FieldTypeInputQuantity,
	FieldTypeGoodQuantity,
	FieldTypeDefectiveQty,
	FieldTypePhoto,
	FieldTypeProductionLot,
}

// IsValid reports whether the value matches the canonical field type enum.
func (t FieldType) IsValid() bool {
	for _, candidate := range validFieldTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsNumeric reports whether captured values are validated against min/max bounds.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldTypeNumber, FieldTypeInputQuantity, FieldTypeGoodQuantity, FieldTypeDefectiveQty:
		return true
	}
	return false
}

// IsRecordQuantity reports whether the captured value writes through to the
// matching quantity column on the production record.
func (t FieldType) IsRecordQuantity() bool {
	switch t {
	case FieldTypeInputQuantity, FieldTypeGoodQuantity, FieldTypeDefectiveQty:
		return true
	}
	return false
}

// ConsumesStock reports whether saving a value of this type posts an outbound
// ledger entry for the selected lot.
func (t FieldType) ConsumesStock() bool {
	switch t {
	case FieldTypeMaterial, FieldTypeMaterialLot, FieldTypeMaterialQuantity:
		return true
	}
	return false
}

// ParseFieldType converts raw input into FieldType.
func ParseFieldType(value string) (FieldType, error) {
	for _, candidate := range validFieldTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid field type %q", value)
}
