package production

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// SaveAnnotationInput captures one value for a (record, field) pair.
type SaveAnnotationInput struct {
	DepartmentID uuid.UUID
	OrderID      uuid.UUID
	ProcessID    uuid.UUID
	FieldID      uuid.UUID
	Value        string
	LotID        *uuid.UUID
	Quantity     *decimal.Decimal
	Note         *string
}

func (s *service) SaveAnnotation(ctx context.Context, input SaveAnnotationInput) (*models.AnnotationValue, error) {
	var saved *models.AnnotationValue
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, process, err := s.loadOrderAndProcess(ctx, repo, input.DepartmentID, input.OrderID, input.ProcessID)
		if err != nil {
			return err
		}

		rec, err := repo.GetRecord(ctx, order.ID, process.ID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no production record exists for this process")
		} else if err != nil {
			return err
		}
		if rec.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "record is %s; annotations are frozen", rec.Status)
		}
		if rec.Status == enums.RecordStatusPaused {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "record is paused; resume before annotating")
		}

		templateProcess, err := s.effectiveTemplateProcess(ctx, repo, process)
		if err != nil {
			return err
		}
		field, err := repo.GetField(ctx, input.FieldID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "annotation field not found")
		} else if err != nil {
			return err
		}
		if field.ProcessID != templateProcess.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "field does not belong to this process")
		}

		withinTolerance, err := s.validateValue(ctx, tx, field, input)
		if err != nil {
			return err
		}

		value, err := repo.GetValue(ctx, rec.ID, field.ID)
		if err == gorm.ErrRecordNotFound {
			value = &models.AnnotationValue{
				ID:                 uuid.New(),
				ProductionRecordID: rec.ID,
				FieldID:            field.ID,
			}
			value.Value = input.Value
			value.Note = input.Note
			value.LotID = input.LotID
			value.Quantity = input.Quantity
			value.IsWithinTolerance = withinTolerance
			if err := repo.CreateValue(ctx, value); err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			value.Value = input.Value
			value.Note = input.Note
			value.LotID = input.LotID
			value.Quantity = input.Quantity
			value.IsWithinTolerance = withinTolerance
			if err := repo.UpdateValue(ctx, value); err != nil {
				return err
			}
		}

		if field.Type.IsRecordQuantity() {
			if err := s.writeThroughQuantity(ctx, repo, rec, field.Type, value); err != nil {
				return err
			}
		}

		if field.Type.ConsumesStock() {
			if err := s.repostConsumption(ctx, tx, repo, order, rec, field, value); err != nil {
				return err
			}
		}

		saved = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// validateValue applies the per-type validation strategy and computes the
// tolerance flag for numeric captures.
func (s *service) validateValue(ctx context.Context, tx *gorm.DB, field *models.AnnotationField, input SaveAnnotationInput) (bool, error) {
	if !field.Type.IsValid() {
		return false, pkgerrors.Newf(pkgerrors.CodeValidation, "field has unknown type %q", field.Type)
	}

	switch {
	case field.Type.IsNumeric():
		if input.Value == "" {
			return true, nil
		}
		parsed, err := strconv.ParseFloat(input.Value, 64)
		if err != nil {
			return false, pkgerrors.Newf(pkgerrors.CodeValidation, "value %q is not numeric", input.Value)
		}
		within := true
		if field.MinValue != nil && parsed < *field.MinValue {
			within = false
		}
		if field.MaxValue != nil && parsed > *field.MaxValue {
			within = false
		}
		return within, nil

	case field.Type == enums.FieldTypeMaterial:
		if input.LotID == nil || input.Quantity == nil {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "material fields require a lot and a quantity")
		}
		if input.Quantity.Sign() <= 0 {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "consumed quantity must be positive")
		}
		return true, s.validateLotSelection(ctx, tx, field, *input.LotID)

	case field.Type == enums.FieldTypeMaterialLot:
		if input.LotID == nil {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "a lot must be selected")
		}
		return true, s.validateLotSelection(ctx, tx, field, *input.LotID)

	case field.Type == enums.FieldTypeMaterialQuantity:
		if input.Quantity == nil {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "a quantity is required")
		}
		if input.Quantity.Sign() <= 0 {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "consumed quantity must be positive")
		}
		return true, nil
	}

	return true, nil
}

func (s *service) validateLotSelection(ctx context.Context, tx *gorm.DB, field *models.AnnotationField, lotID uuid.UUID) error {
	var lot models.Lot
	if err := tx.WithContext(ctx).First(&lot, "id = ?", lotID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
		}
		return err
	}
	if field.LinkedItemID != nil && lot.ItemID != *field.LinkedItemID {
		return pkgerrors.New(pkgerrors.CodeValidation, "lot does not belong to the field's linked item")
	}
	return nil
}

func (s *service) writeThroughQuantity(ctx context.Context, repo Repository, rec *models.ProductionRecord, fieldType enums.FieldType, value *models.AnnotationValue) error {
	qty, err := annotationQuantity(*value)
	if err != nil {
		return err
	}
	switch fieldType {
	case enums.FieldTypeInputQuantity:
		rec.InputQuantity = qty
	case enums.FieldTypeGoodQuantity:
		rec.GoodQuantity = qty
	case enums.FieldTypeDefectiveQty:
		rec.DefectiveQuantity = qty
	}
	return repo.UpdateRecord(ctx, rec)
}

// repostConsumption replaces the ledger entry attributed to the value pair.
// Prior entries for both halves of a lot/quantity pairing are deleted first,
// then a single fresh outbound entry is posted once both halves are known.
func (s *service) repostConsumption(ctx context.Context, tx *gorm.DB, repo Repository, order *models.ProductionOrder, rec *models.ProductionRecord, field *models.AnnotationField, value *models.AnnotationValue) error {
	related, err := s.relatedValue(ctx, repo, rec.ID, field)
	if err != nil {
		return err
	}

	attributed := []uuid.UUID{value.ID}
	if related != nil {
		attributed = append(attributed, related.ID)
	}
	if err := s.ledger.DeleteByAnnotationValuesTx(ctx, tx, attributed); err != nil {
		return err
	}

	lotID, qty, carrierID := consumptionPair(field.Type, value, related)
	if lotID == nil || qty == nil || qty.Sign() <= 0 {
		// Pairing incomplete; the entry is posted when the other half lands.
		return nil
	}

	// Lock the lot row so racing consumers of the same lot serialize their
	// balance checks across instances.
	var lot models.Lot
	if err := db.LockForUpdate(tx.WithContext(ctx)).First(&lot, "id = ?", *lotID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
		}
		return err
	}

	now := s.clock.Now()
	balance, err := s.ledger.LotBalanceTx(ctx, tx, *lotID, now)
	if err != nil {
		return err
	}
	if balance.LessThan(*qty) {
		return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
			"lot balance is %s, requested %s", balance.String(), qty.String()).
			WithDetails(map[string]any{"available": balance.String()})
	}

	_, err = s.ledger.PostTx(ctx, tx, ledger.PostInput{
		DepartmentID:      order.DepartmentID,
		ItemID:            lot.ItemID,
		LotID:             lotID,
		Quantity:          qty.Neg(),
		Type:              enums.MovementTypeOut,
		MovedAt:           now,
		Reason:            "material consumption",
		AnnotationValueID: &carrierID,
	})
	return err
}

// relatedValue finds the saved value of the field paired with this one, in
// either link direction.
func (s *service) relatedValue(ctx context.Context, repo Repository, recordID uuid.UUID, field *models.AnnotationField) (*models.AnnotationValue, error) {
	var relatedFieldID *uuid.UUID
	if field.RelatedFieldID != nil {
		relatedFieldID = field.RelatedFieldID
	} else {
		fields, err := repo.FieldsForProcess(ctx, field.ProcessID)
		if err != nil {
			return nil, err
		}
		for i := range fields {
			if fields[i].RelatedFieldID != nil && *fields[i].RelatedFieldID == field.ID {
				relatedFieldID = &fields[i].ID
				break
			}
		}
	}
	if relatedFieldID == nil {
		return nil, nil
	}
	related, err := repo.GetValue(ctx, recordID, *relatedFieldID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return related, nil
}

// consumptionPair resolves which value carries the lot and which the
// quantity. The returned carrier is the value the ledger entry is attributed
// to, so a later re-save of either half finds it.
func consumptionPair(fieldType enums.FieldType, value, related *models.AnnotationValue) (*uuid.UUID, *decimal.Decimal, uuid.UUID) {
	switch fieldType {
	case enums.FieldTypeMaterial:
		return value.LotID, value.Quantity, value.ID
	case enums.FieldTypeMaterialLot:
		if related == nil {
			return value.LotID, nil, value.ID
		}
		return value.LotID, related.Quantity, value.ID
	case enums.FieldTypeMaterialQuantity:
		if related == nil || related.LotID == nil {
			return nil, value.Quantity, value.ID
		}
		return related.LotID, value.Quantity, related.ID
	}
	return nil, nil, value.ID
}
