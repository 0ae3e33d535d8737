package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// Service is the append-only stock ledger. Entries are immutable; the only
// delete path is the annotation-correction repost.
type Service interface {
	// Post appends an entry without a balance guard (inbound, adjustments,
	// external sync). Outbound callers that must not overdraw use
	// PostOutboundGuarded.
	Post(ctx context.Context, input PostInput) (*models.StockMovement, error)
	// PostTx appends an entry inside the caller's transaction.
	PostTx(ctx context.Context, tx *gorm.DB, input PostInput) (*models.StockMovement, error)
	// PostOutboundGuarded validates the scope's balance before appending a
	// negative entry. Exactly one of two racing overdraws succeeds.
	PostOutboundGuarded(ctx context.Context, input PostInput) (*models.StockMovement, error)
	ItemBalance(ctx context.Context, itemID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	LotBalance(ctx context.Context, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	// LotBalanceTx computes the lot balance inside the caller's transaction,
	// seeing its uncommitted writes.
	LotBalanceTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	// DeleteByAnnotationValuesTx removes attributed entries inside the
	// caller's transaction; no-op when nothing is attributed.
	DeleteByAnnotationValuesTx(ctx context.Context, tx *gorm.DB, valueIDs []uuid.UUID) error
}

// PostInput captures the immutable data a stock movement requires. Quantity
// is signed: outbound movements must be negative, the ledger never infers
// sign from Type.
type PostInput struct {
	DepartmentID      uuid.UUID
	ItemID            uuid.UUID
	LotID             *uuid.UUID
	Quantity          decimal.Decimal
	Type              enums.MovementType
	MovedAt           time.Time
	Reason            string
	AnnotationValueID *uuid.UUID
	IsExternalSync    bool
}

type service struct {
	client *db.Client
	repo   Repository
	clock  clock.Clock
	scopes keyedMutex
}

// NewService wires the ledger service.
func NewService(client *db.Client, repo Repository, clk clock.Clock) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if clk == nil {
		clk = clock.System
	}
	return &service{client: client, repo: repo, clock: clk}, nil
}

func (s *service) Post(ctx context.Context, input PostInput) (*models.StockMovement, error) {
	var movement *models.StockMovement
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		posted, err := s.PostTx(ctx, tx, input)
		if err != nil {
			return err
		}
		movement = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) PostTx(ctx context.Context, tx *gorm.DB, input PostInput) (*models.StockMovement, error) {
	if err := validatePost(input); err != nil {
		return nil, err
	}

	movedAt := input.MovedAt
	if movedAt.IsZero() {
		movedAt = s.clock.Now()
	}

	var item models.Item
	if err := tx.WithContext(ctx).First(&item, "id = ?", input.ItemID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, err
	}

	movement := &models.StockMovement{
		ID:                uuid.New(),
		DepartmentID:      input.DepartmentID,
		ItemID:            input.ItemID,
		LotID:             input.LotID,
		Quantity:          input.Quantity,
		Type:              input.Type,
		Reason:            input.Reason,
		MovedAt:           movedAt,
		AnnotationValueID: input.AnnotationValueID,
		IsExternalSync:    input.IsExternalSync,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, err
	}

	if err := s.maybeEnqueueSync(ctx, tx, &item, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) PostOutboundGuarded(ctx context.Context, input PostInput) (*models.StockMovement, error) {
	if err := validatePost(input); err != nil {
		return nil, err
	}
	if input.Quantity.Sign() >= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbound quantity must be negative")
	}

	// Serialize racing writers on the same scope in-process; the Postgres
	// row lock below extends the guarantee across instances.
	unlock := s.scopes.lock(scopeKey(input.ItemID, input.LotID))
	defer unlock()

	var movement *models.StockMovement
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if input.LotID != nil {
			var lot models.Lot
			if err := db.LockForUpdate(tx.WithContext(ctx)).First(&lot, "id = ?", *input.LotID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
				}
				return err
			}
		} else {
			var item models.Item
			if err := db.LockForUpdate(tx.WithContext(ctx)).First(&item, "id = ?", input.ItemID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
				}
				return err
			}
		}

		movedAt := input.MovedAt
		if movedAt.IsZero() {
			movedAt = s.clock.Now()
		}

		balance, err := s.balanceTx(ctx, tx, input, movedAt)
		if err != nil {
			return err
		}
		if balance.Add(input.Quantity).Sign() < 0 {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
				"available balance is %s, requested %s", balance.String(), input.Quantity.Neg().String()).
				WithDetails(map[string]any{"available": balance.String()})
		}

		input.MovedAt = movedAt
		posted, err := s.PostTx(ctx, tx, input)
		if err != nil {
			return err
		}
		movement = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) balanceTx(ctx context.Context, tx *gorm.DB, input PostInput, asOf time.Time) (decimal.Decimal, error) {
	repo := s.repo.WithTx(tx)
	if input.LotID != nil {
		return repo.SumForLot(ctx, *input.LotID, asOf)
	}
	return repo.SumForItem(ctx, input.ItemID, asOf)
}

func (s *service) ItemBalance(ctx context.Context, itemID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	if itemID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return s.repo.SumForItem(ctx, itemID, asOf)
}

func (s *service) LotBalance(ctx context.Context, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	if lotID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "lot id is required")
	}
	return s.repo.SumForLot(ctx, lotID, asOf)
}

func (s *service) LotBalanceTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	if lotID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "lot id is required")
	}
	return s.repo.WithTx(tx).SumForLot(ctx, lotID, asOf)
}

func (s *service) DeleteByAnnotationValuesTx(ctx context.Context, tx *gorm.DB, valueIDs []uuid.UUID) error {
	return s.repo.WithTx(tx).DeleteByAnnotationValues(ctx, valueIDs)
}

// maybeEnqueueSync mirrors qualifying local movements to the procurement
// outbox. Entries that arrived from the external system never echo back.
func (s *service) maybeEnqueueSync(ctx context.Context, tx *gorm.DB, item *models.Item, movement *models.StockMovement) error {
	if movement.IsExternalSync || !item.SyncToProcurement {
		return nil
	}
	if movement.Type != enums.MovementTypeIn && movement.Type != enums.MovementTypeOut {
		return nil
	}

	var lotNumber *string
	if movement.LotID != nil {
		var lot models.Lot
		if err := tx.WithContext(ctx).First(&lot, "id = ?", *movement.LotID).Error; err == nil {
			lotNumber = &lot.LotNumber
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
	}

	entry := &models.SyncOutbox{
		ID:         uuid.New(),
		MovementID: movement.ID,
		SKU:        item.Code,
		LotNumber:  lotNumber,
		Quantity:   movement.Quantity.Abs(),
		Type:       movement.Type,
		Reason:     movement.Reason,
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func validatePost(input PostInput) error {
	if input.DepartmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "department id is required")
	}
	if input.ItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", input.Type)
	}
	if input.Quantity.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-zero")
	}
	return nil
}

func scopeKey(itemID uuid.UUID, lotID *uuid.UUID) string {
	if lotID != nil {
		return "lot:" + lotID.String()
	}
	return "item:" + itemID.String()
}

// keyedMutex hands out one mutex per scope key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
