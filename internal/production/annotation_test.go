package production

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

type materialFixture struct {
	*fixture
	order    models.ProductionOrder
	process  models.Process
	material models.Item
	lot      models.Lot
}

// newMaterialFixture builds an assembly item with one process and a material
// item with 100 units on hand in one lot.
func newMaterialFixture(t *testing.T) *materialFixture {
	t.Helper()
	f := newFixture(t)
	assembly, processes := f.seedItem(t, false, "assembly")
	order := f.seedOrder(t, assembly, nil, 10)

	material, _ := f.seedItem(t, false)
	lot := f.seedLot(t, material, "MAT-001")
	if _, err := f.ledger.Post(context.Background(), ledger.PostInput{
		DepartmentID: f.dept, ItemID: material.ID, LotID: &lot.ID,
		Quantity: decimal.NewFromInt(100), Type: enums.MovementTypeIn,
	}); err != nil {
		t.Fatalf("seed material stock: %v", err)
	}

	f.runToWorking(t, order, processes[0])
	return &materialFixture{fixture: f, order: order, process: processes[0], material: material, lot: lot}
}

func (mf *materialFixture) seedField(t *testing.T, fieldType enums.FieldType, related *uuid.UUID) models.AnnotationField {
	t.Helper()
	field := models.AnnotationField{
		ID: uuid.New(), ProcessID: mf.process.ID,
		FieldKey: string(fieldType) + "_" + uuid.NewString()[:4], Label: string(fieldType),
		Type: fieldType, LinkedItemID: &mf.material.ID, RelatedFieldID: related,
	}
	if err := mf.conn.Create(&field).Error; err != nil {
		t.Fatalf("seed field: %v", err)
	}
	return field
}

func (mf *materialFixture) movementsForLot(t *testing.T) []models.StockMovement {
	t.Helper()
	var movements []models.StockMovement
	if err := mf.conn.Where("lot_id = ? AND quantity < 0", mf.lot.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	return movements
}

func TestMaterialAnnotationPostsSingleEntryOnResave(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	field := mf.seedField(t, enums.FieldTypeMaterial, nil)

	qty := decimal.NewFromInt(30)
	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, LotID: &mf.lot.ID, Quantity: &qty,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Re-saving with a different quantity replaces the entry, never stacks.
	qty2 := decimal.NewFromInt(45)
	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, LotID: &mf.lot.ID, Quantity: &qty2,
	}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	movements := mf.movementsForLot(t)
	if len(movements) != 1 {
		t.Fatalf("outbound entries = %d, want 1 after re-save", len(movements))
	}
	if !movements[0].Quantity.Equal(decimal.NewFromInt(-45)) {
		t.Fatalf("entry quantity = %s, want -45", movements[0].Quantity)
	}

	balance, err := mf.ledger.LotBalance(ctx, mf.lot.ID, mf.clk.Now())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("balance = %s, want 55", balance)
	}
}

func TestMaterialAnnotationRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	field := mf.seedField(t, enums.FieldTypeMaterial, nil)

	qty := decimal.NewFromInt(150)
	_, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, LotID: &mf.lot.ID, Quantity: &qty,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	// The rejected save must leave no value and no ledger entry behind.
	if got := len(mf.movementsForLot(t)); got != 0 {
		t.Fatalf("outbound entries = %d, want 0 after rejection", got)
	}
	var count int64
	if err := mf.conn.Model(&models.AnnotationValue{}).Where("field_id = ?", field.ID).Count(&count).Error; err != nil {
		t.Fatalf("count values: %v", err)
	}
	if count != 0 {
		t.Fatalf("annotation values = %d, want 0 after rollback", count)
	}
}

func TestPairedLotAndQuantityFieldsPostOneEntry(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	lotField := mf.seedField(t, enums.FieldTypeMaterialLot, nil)
	qtyField := mf.seedField(t, enums.FieldTypeMaterialQuantity, &lotField.ID)

	// Lot half alone does not post anything.
	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: lotField.ID, LotID: &mf.lot.ID,
	}); err != nil {
		t.Fatalf("save lot half: %v", err)
	}
	if got := len(mf.movementsForLot(t)); got != 0 {
		t.Fatalf("outbound entries = %d, want 0 with only the lot half", got)
	}

	qty := decimal.NewFromInt(25)
	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: qtyField.ID, Quantity: &qty,
	}); err != nil {
		t.Fatalf("save quantity half: %v", err)
	}

	movements := mf.movementsForLot(t)
	if len(movements) != 1 {
		t.Fatalf("outbound entries = %d, want 1 once both halves exist", len(movements))
	}
	if !movements[0].Quantity.Equal(decimal.NewFromInt(-25)) {
		t.Fatalf("entry quantity = %s, want -25", movements[0].Quantity)
	}

	// Correcting the quantity half reposts the single entry.
	qty2 := decimal.NewFromInt(40)
	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: qtyField.ID, Quantity: &qty2,
	}); err != nil {
		t.Fatalf("re-save quantity half: %v", err)
	}
	movements = mf.movementsForLot(t)
	if len(movements) != 1 || !movements[0].Quantity.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("expected one -40 entry after repost, got %+v", movements)
	}
}

func TestNumericToleranceFlag(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	minV, maxV := 10.0, 20.0
	field := models.AnnotationField{
		ID: uuid.New(), ProcessID: mf.process.ID,
		FieldKey: "thickness", Label: "Thickness", Type: enums.FieldTypeNumber,
		MinValue: &minV, MaxValue: &maxV,
	}
	if err := mf.conn.Create(&field).Error; err != nil {
		t.Fatalf("seed field: %v", err)
	}

	value, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, Value: "25",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if value.IsWithinTolerance {
		t.Fatalf("25 with max 20 should be out of tolerance")
	}

	value, err = mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, Value: "15",
	})
	if err != nil {
		t.Fatalf("re-save: %v", err)
	}
	if !value.IsWithinTolerance {
		t.Fatalf("15 within [10,20] should be in tolerance")
	}

	if _, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, Value: "not-a-number",
	}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnnotationRejectedOnTerminalRecord(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	field := mf.seedField(t, enums.FieldTypeMaterial, nil)

	if _, err := mf.svc.CompleteWork(ctx, CompleteInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		Quantities: &Quantities{Input: decimal.NewFromInt(10), Good: decimal.NewFromInt(10)},
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	qty := decimal.NewFromInt(5)
	_, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, LotID: &mf.lot.ID, Quantity: &qty,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on completed record, got %v", err)
	}
}

func TestMaterialLotMustMatchLinkedItem(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	ctx := context.Background()
	field := mf.seedField(t, enums.FieldTypeMaterial, nil)

	other, _ := mf.seedItem(t, false)
	wrongLot := mf.seedLot(t, other, "WRONG-01")

	qty := decimal.NewFromInt(5)
	_, err := mf.svc.SaveAnnotation(ctx, SaveAnnotationInput{
		DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID,
		FieldID: field.ID, LotID: &wrongLot.ID, Quantity: &qty,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for mismatched lot, got %v", err)
	}
}

func TestConcurrentMaterialConsumersCannotJointlyOverdraw(t *testing.T) {
	t.Parallel()

	mf := newMaterialFixture(t)
	fieldA := mf.seedField(t, enums.FieldTypeMaterial, nil)

	// A second order working a different record against the same lot.
	assemblyB, processesB := mf.seedItem(t, false, "assembly")
	orderB := mf.seedOrder(t, assemblyB, nil, 10)
	mf.runToWorking(t, orderB, processesB[0])
	fieldB := models.AnnotationField{
		ID: uuid.New(), ProcessID: processesB[0].ID,
		FieldKey: "material_b", Label: "Material", Type: enums.FieldTypeMaterial,
		LinkedItemID: &mf.material.ID,
	}
	if err := mf.conn.Create(&fieldB).Error; err != nil {
		t.Fatalf("seed field: %v", err)
	}

	saves := []SaveAnnotationInput{
		{DepartmentID: mf.dept, OrderID: mf.order.ID, ProcessID: mf.process.ID, FieldID: fieldA.ID},
		{DepartmentID: mf.dept, OrderID: orderB.ID, ProcessID: processesB[0].ID, FieldID: fieldB.ID},
	}
	quantities := []decimal.Decimal{decimal.NewFromInt(60), decimal.NewFromInt(70)}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := range saves {
		wg.Add(1)
		go func(input SaveAnnotationInput, qty decimal.Decimal) {
			defer wg.Done()
			input.LotID = &mf.lot.ID
			input.Quantity = &qty
			_, err := mf.svc.SaveAnnotation(context.Background(), input)
			results <- err
		}(saves[i], quantities[i])
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || rejections != 1 {
		t.Fatalf("successes = %d, rejections = %d, want exactly one of each", successes, rejections)
	}

	// 100 on hand minus one of 60/70 can never go negative.
	balance, err := mf.ledger.LotBalance(context.Background(), mf.lot.ID, mf.clk.Now())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() < 0 {
		t.Fatalf("lot overdrawn to %s", balance)
	}
	if got := len(mf.movementsForLot(t)); got != 1 {
		t.Fatalf("outbound entries = %d, want 1", got)
	}
}
