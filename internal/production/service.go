package production

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// Service drives the per-(order, process) production record state machine
// and the annotation capture surface attached to it.
type Service interface {
	// Stamp applies one worker transition. Records are created lazily on the
	// first setup_start; a pending order flips to in_progress on any stamp.
	Stamp(ctx context.Context, input StampInput) (*models.ProductionRecord, error)
	// CompleteWork is the work_end transition. It enforces the required
	// annotation check, resolves quantities, posts the final-process inbound
	// entry and closes the order when every process is terminal.
	CompleteWork(ctx context.Context, input CompleteInput) (*models.ProductionRecord, error)
	// SaveAnnotation upserts one captured value and reposts any stock
	// consumption attributed to it.
	SaveAnnotation(ctx context.Context, input SaveAnnotationInput) (*models.AnnotationValue, error)
	// RecordForProcess returns the order's record for the process, falling
	// back to the nearest ancestor order's completed record.
	RecordForProcess(ctx context.Context, orderID, processID uuid.UUID) (*models.ProductionRecord, error)
	// EffectiveTemplateProcess resolves the share_template_with_previous
	// chain to the process whose template and fields apply.
	EffectiveTemplateProcess(ctx context.Context, processID uuid.UUID) (*models.Process, error)
	// NeedsQuantityInput reports whether work_end requires explicitly
	// supplied quantities for the process.
	NeedsQuantityInput(ctx context.Context, processID uuid.UUID) (bool, error)
	// IsFinalProcess reports whether the process is the item's last step.
	IsFinalProcess(ctx context.Context, processID uuid.UUID) (bool, error)
}

// StampInput is one worker-initiated transition request.
type StampInput struct {
	DepartmentID uuid.UUID
	OrderID      uuid.UUID
	ProcessID    uuid.UUID
	WorkerID     *uuid.UUID
	Action       enums.StampAction
}

// Quantities carries the three record quantities when the process has no
// quantity-type annotation fields of its own.
type Quantities struct {
	Input     decimal.Decimal
	Good      decimal.Decimal
	Defective decimal.Decimal
}

// CompleteInput is the work_end request.
type CompleteInput struct {
	DepartmentID uuid.UUID
	OrderID      uuid.UUID
	ProcessID    uuid.UUID
	WorkerID     *uuid.UUID
	Quantities   *Quantities
	// ConfirmFinal acknowledges the final-quantity review the last process
	// of an auto-inventory item requires.
	ConfirmFinal bool
	Note         *string
}

type service struct {
	client *db.Client
	repo   Repository
	ledger ledger.Service
	clock  clock.Clock
	logg   *logger.Logger
}

// NewService wires the production service.
func NewService(client *db.Client, repo Repository, ledgerSvc ledger.Service, clk clock.Clock, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("production repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if clk == nil {
		clk = clock.System
	}
	return &service{client: client, repo: repo, ledger: ledgerSvc, clock: clk, logg: logg}, nil
}

func (s *service) Stamp(ctx context.Context, input StampInput) (*models.ProductionRecord, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stamp action %q", input.Action)
	}

	var record *models.ProductionRecord
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, process, err := s.loadOrderAndProcess(ctx, repo, input.DepartmentID, input.OrderID, input.ProcessID)
		if err != nil {
			return err
		}

		rec, err := repo.GetRecord(ctx, order.ID, process.ID)
		if err == gorm.ErrRecordNotFound {
			if input.Action != enums.StampActionSetupStart {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict,
					"no production record exists for process %q; stamp setup_start first", process.Name)
			}
			rec = &models.ProductionRecord{
				ID:                uuid.New(),
				ProductionOrderID: order.ID,
				ProcessID:         process.ID,
				WorkerID:          input.WorkerID,
				Status:            enums.RecordStatusPending,
			}
			if err := repo.CreateRecord(ctx, rec); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if rec.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "record is already %s", rec.Status)
		}

		now := s.clock.Now()
		switch input.Action {
		case enums.StampActionSetupStart:
			if rec.SetupStartedAt != nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "setup has already started")
			}
			rec.SetupStartedAt = &now
			rec.Status = enums.RecordStatusInProgress
		case enums.StampActionSetupEnd:
			if rec.SetupStartedAt == nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "setup has not started")
			}
			if rec.SetupFinishedAt != nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "setup has already finished")
			}
			rec.SetupFinishedAt = &now
		case enums.StampActionWorkStart:
			if rec.SetupFinishedAt == nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "setup has not finished")
			}
			if rec.WorkStartedAt != nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "work has already started")
			}
			rec.WorkStartedAt = &now
			rec.Status = enums.RecordStatusInProgress
		case enums.StampActionPause:
			if rec.Status != enums.RecordStatusInProgress {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot pause a %s record", rec.Status)
			}
			rec.PausedAt = &now
			rec.Status = enums.RecordStatusPaused
		case enums.StampActionResume:
			if rec.Status != enums.RecordStatusPaused || rec.PausedAt == nil {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot resume a %s record", rec.Status)
			}
			rec.TotalPausedSeconds += int64(now.Sub(*rec.PausedAt).Seconds())
			rec.PausedAt = nil
			rec.Status = enums.RecordStatusInProgress
		case enums.StampActionStop:
			if rec.PausedAt != nil {
				rec.TotalPausedSeconds += int64(now.Sub(*rec.PausedAt).Seconds())
				rec.PausedAt = nil
			}
			rec.Status = enums.RecordStatusStopped
		}

		if input.WorkerID != nil {
			rec.WorkerID = input.WorkerID
		}
		if err := repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		if order.Status == enums.OrderStatusPending {
			order.Status = enums.OrderStatusInProgress
			if err := repo.UpdateOrder(ctx, order); err != nil {
				return err
			}
		}
		if input.Action == enums.StampActionStop {
			if err := s.closeOrderIfDone(ctx, repo, order); err != nil {
				return err
			}
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) CompleteWork(ctx context.Context, input CompleteInput) (*models.ProductionRecord, error) {
	var record *models.ProductionRecord
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
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "record is already %s", rec.Status)
		}
		if rec.WorkStartedAt == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "work has not started")
		}
		if rec.WorkFinishedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "work has already finished")
		}

		templateProcess, err := s.effectiveTemplateProcess(ctx, repo, process)
		if err != nil {
			return err
		}
		fields, err := repo.FieldsForProcess(ctx, templateProcess.ID)
		if err != nil {
			return err
		}
		values, err := repo.ValuesForRecord(ctx, rec.ID)
		if err != nil {
			return err
		}

		if missing := missingRequiredFields(fields, values); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "required annotation fields are not filled").
				WithDetails(map[string]any{"missing_fields": missing})
		}

		quantities, err := resolveQuantities(fields, values, input.Quantities)
		if err != nil {
			return err
		}

		isFinal, err := s.isFinalProcess(ctx, repo, process)
		if err != nil {
			return err
		}

		var item models.Item
		if err := tx.WithContext(ctx).First(&item, "id = ?", order.ItemID).Error; err != nil {
			return err
		}
		if isFinal && item.AutoInventoryUpdate && !input.ConfirmFinal {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"final process completion requires confirming the recorded quantities")
		}

		now := s.clock.Now()
		if rec.PausedAt != nil {
			rec.TotalPausedSeconds += int64(now.Sub(*rec.PausedAt).Seconds())
			rec.PausedAt = nil
		}
		rec.InputQuantity = quantities.Input
		rec.GoodQuantity = quantities.Good
		rec.DefectiveQuantity = quantities.Defective
		rec.WorkFinishedAt = &now
		rec.Status = enums.RecordStatusCompleted
		if input.WorkerID != nil {
			rec.WorkerID = input.WorkerID
		}
		if input.Note != nil {
			rec.Note = input.Note
		}
		if err := repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		if isFinal && item.AutoInventoryUpdate && quantities.Good.Sign() > 0 {
			if _, err := s.ledger.PostTx(ctx, tx, ledger.PostInput{
				DepartmentID: order.DepartmentID,
				ItemID:       order.ItemID,
				LotID:        order.LotID,
				Quantity:     quantities.Good,
				Type:         enums.MovementTypeIn,
				MovedAt:      now,
				Reason:       "production completed",
			}); err != nil {
				return err
			}
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"order_id": order.ID.String(),
					"good_qty": quantities.Good.String(),
				})
				s.logg.Info(logCtx, "final process completed, inventory posted")
			}
		}

		if err := s.closeOrderIfDone(ctx, repo, order); err != nil {
			return err
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) RecordForProcess(ctx context.Context, orderID, processID uuid.UUID) (*models.ProductionRecord, error) {
	return s.recordForProcess(ctx, s.repo, orderID, processID)
}

// recordForProcess walks the parent-order chain iteratively. Ancestor records
// only count when completed; the visited set bounds corrupt chains.
func (s *service) recordForProcess(ctx context.Context, repo Repository, orderID, processID uuid.UUID) (*models.ProductionRecord, error) {
	visited := map[uuid.UUID]bool{}
	currentID := orderID
	for {
		if visited[currentID] {
			return nil, gorm.ErrRecordNotFound
		}
		visited[currentID] = true

		rec, err := repo.GetRecord(ctx, currentID, processID)
		if err == nil {
			if currentID == orderID || rec.Status == enums.RecordStatusCompleted {
				return rec, nil
			}
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		order, err := repo.GetOrder(ctx, currentID)
		if err != nil {
			return nil, err
		}
		if order.ParentOrderID == nil {
			return nil, gorm.ErrRecordNotFound
		}
		currentID = *order.ParentOrderID
	}
}

func (s *service) EffectiveTemplateProcess(ctx context.Context, processID uuid.UUID) (*models.Process, error) {
	process, err := s.repo.GetProcess(ctx, processID)
	if err != nil {
		return nil, err
	}
	return s.effectiveTemplateProcess(ctx, s.repo, process)
}

// effectiveTemplateProcess walks backwards through the item's sorted steps
// while share_template_with_previous is set. The walk is bounded by the
// process count.
func (s *service) effectiveTemplateProcess(ctx context.Context, repo Repository, process *models.Process) (*models.Process, error) {
	if !process.ShareTemplateWithPrevious {
		return process, nil
	}
	processes, err := repo.ProcessesForItem(ctx, process.ItemID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range processes {
		if processes[i].ID == process.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return process, nil
	}
	for idx > 0 && processes[idx].ShareTemplateWithPrevious {
		idx--
	}
	return &processes[idx], nil
}

func (s *service) NeedsQuantityInput(ctx context.Context, processID uuid.UUID) (bool, error) {
	process, err := s.repo.GetProcess(ctx, processID)
	if err != nil {
		return false, err
	}
	templateProcess, err := s.effectiveTemplateProcess(ctx, s.repo, process)
	if err != nil {
		return false, err
	}
	fields, err := s.repo.FieldsForProcess(ctx, templateProcess.ID)
	if err != nil {
		return false, err
	}
	return !hasAllQuantityFields(fields), nil
}

func (s *service) IsFinalProcess(ctx context.Context, processID uuid.UUID) (bool, error) {
	process, err := s.repo.GetProcess(ctx, processID)
	if err != nil {
		return false, err
	}
	return s.isFinalProcess(ctx, s.repo, process)
}

func (s *service) isFinalProcess(ctx context.Context, repo Repository, process *models.Process) (bool, error) {
	processes, err := repo.ProcessesForItem(ctx, process.ItemID)
	if err != nil {
		return false, err
	}
	if len(processes) == 0 {
		return false, nil
	}
	return processes[len(processes)-1].ID == process.ID, nil
}

// closeOrderIfDone flips the order to completed when every process of the
// item has a terminal record, locally or inherited.
func (s *service) closeOrderIfDone(ctx context.Context, repo Repository, order *models.ProductionOrder) error {
	processes, err := repo.ProcessesForItem(ctx, order.ItemID)
	if err != nil {
		return err
	}
	if len(processes) == 0 {
		return nil
	}
	for _, process := range processes {
		rec, err := s.recordForProcess(ctx, repo, order.ID, process.ID)
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if !rec.Status.IsTerminal() {
			return nil
		}
	}
	order.Status = enums.OrderStatusCompleted
	if err := repo.UpdateOrder(ctx, order); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "order_id", order.ID.String())
		s.logg.Info(logCtx, "all processes terminal, order completed")
	}
	return nil
}

func (s *service) loadOrderAndProcess(ctx context.Context, repo Repository, departmentID, orderID, processID uuid.UUID) (*models.ProductionOrder, *models.Process, error) {
	if departmentID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "department id is required")
	}
	order, err := repo.GetOrder(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "production order not found")
	} else if err != nil {
		return nil, nil, err
	}
	if order.DepartmentID != departmentID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "production order not found")
	}
	process, err := repo.GetProcess(ctx, processID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "process not found")
	} else if err != nil {
		return nil, nil, err
	}
	if process.ItemID != order.ItemID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "process does not belong to the order's item")
	}
	return order, process, nil
}

func missingRequiredFields(fields []models.AnnotationField, values []models.AnnotationValue) []string {
	filled := make(map[uuid.UUID]bool, len(values))
	for _, v := range values {
		if v.Value != "" || v.LotID != nil || v.Quantity != nil {
			filled[v.FieldID] = true
		}
	}
	var missing []string
	for _, f := range fields {
		if !f.IsOptional && !filled[f.ID] {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

func hasAllQuantityFields(fields []models.AnnotationField) bool {
	seen := map[enums.FieldType]bool{}
	for _, f := range fields {
		if f.Type.IsRecordQuantity() {
			seen[f.Type] = true
		}
	}
	return seen[enums.FieldTypeInputQuantity] &&
		seen[enums.FieldTypeGoodQuantity] &&
		seen[enums.FieldTypeDefectiveQty]
}

// resolveQuantities prefers quantities captured through annotation fields;
// when the process lacks the full trio the caller must supply them.
func resolveQuantities(fields []models.AnnotationField, values []models.AnnotationValue, explicit *Quantities) (Quantities, error) {
	if !hasAllQuantityFields(fields) {
		if explicit == nil {
			return Quantities{}, pkgerrors.New(pkgerrors.CodeValidation,
				"process captures no quantities; input, good and defective quantities must be supplied")
		}
		return validateQuantities(*explicit)
	}

	typeByField := make(map[uuid.UUID]enums.FieldType, len(fields))
	for _, f := range fields {
		typeByField[f.ID] = f.Type
	}

	var out Quantities
	for _, v := range values {
		fieldType, ok := typeByField[v.FieldID]
		if !ok || !fieldType.IsRecordQuantity() {
			continue
		}
		qty, err := annotationQuantity(v)
		if err != nil {
			return Quantities{}, err
		}
		switch fieldType {
		case enums.FieldTypeInputQuantity:
			out.Input = qty
		case enums.FieldTypeGoodQuantity:
			out.Good = qty
		case enums.FieldTypeDefectiveQty:
			out.Defective = qty
		}
	}
	return validateQuantities(out)
}

func validateQuantities(q Quantities) (Quantities, error) {
	for _, qty := range []decimal.Decimal{q.Input, q.Good, q.Defective} {
		if qty.Sign() < 0 {
			return Quantities{}, pkgerrors.New(pkgerrors.CodeValidation, "quantities must not be negative")
		}
	}
	return q, nil
}

func annotationQuantity(v models.AnnotationValue) (decimal.Decimal, error) {
	if v.Quantity != nil {
		return *v.Quantity, nil
	}
	if v.Value == "" {
		return decimal.Zero, nil
	}
	qty, err := decimal.NewFromString(v.Value)
	if err != nil {
		return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity value %q is not numeric", v.Value)
	}
	return qty, nil
}
