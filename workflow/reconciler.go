package workflow

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

// Error kinds surfaced per item. PositionNotFound is a data inconsistency;
// the others are normal business outcomes the caller reports back.
var (
	ErrEndOfWorkflow        = errors.New("item is already at the end of the workflow")
	ErrInsufficientQuantity = errors.New("quantity exceeds the quantity at the source position")
	ErrInvalidReworkReason  = errors.New("rework reason is required")
	ErrInvalidReworkTarget  = errors.New("rework cannot target the terminal stage")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
)

const minReworkReasonLength = 3

// MovementRequest is one item's slice of a batch movement. A nil Source means
// the quantity comes out of the item's unallocated new pool.
type MovementRequest struct {
	ItemId   int       `json:"item_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,gt=0"`
	Source   *Position `json:"source"`
}

type MovementOutcome struct {
	ItemId      int       `json:"item_id"`
	Quantity    int       `json:"quantity"`
	From        *Position `json:"from"`
	To          Position  `json:"to"`
	IsCompleted bool      `json:"is_completed"`
}

type MovementFailure struct {
	ItemId int    `json:"item_id"`
	Reason string `json:"reason"`
}

// MovementResult separates per-item successes from failures. One bad item
// never aborts the rest of the batch; items are processed in independent
// transactions.
type MovementResult struct {
	Succeeded []MovementOutcome `json:"succeeded"`
	Failed    []MovementFailure `json:"failed"`
}

// ValidateReworkReason enforces the mandatory reason on rework movements:
// non-blank after trimming and at least three runes. A blank reason is a
// validation error, never silently defaulted.
func ValidateReworkReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if len([]rune(trimmed)) < minReworkReasonLength {
		return "", ErrInvalidReworkReason
	}
	return trimmed, nil
}

// FailureReason maps a movement error to the stable kind string reported in
// MovementFailure entries.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrPositionNotFound):
		return "PositionNotFound"
	case errors.Is(err, ErrEndOfWorkflow):
		return "EndOfWorkflow"
	case errors.Is(err, ErrInsufficientQuantity):
		return "InsufficientQuantity"
	case errors.Is(err, ErrInvalidReworkReason):
		return "InvalidReworkReason"
	case errors.Is(err, ErrInvalidReworkTarget):
		return "InvalidReworkTarget"
	case errors.Is(err, ErrInvalidQuantity):
		return "InvalidQuantity"
	case errors.Is(err, utils.ErrorRecordNotFound):
		return "ItemNotFound"
	default:
		return "Internal"
	}
}

// MoveForward advances quantity for each requested item. The destination is
// the explicit target when given, otherwise the next traversal position from
// the item's source; a nil source draws from the new pool and enters the
// workflow at its first position (or the explicit target).
func MoveForward(ctx context.Context, requests []MovementRequest, target *Position) (*MovementResult, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	actorId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || actorId == 0 {
		return nil, errors.New("user id is required")
	}

	db := config.GetDB()
	logger := config.GetLogger()

	// redis lock is best-effort; the advisory lock inside each item
	// transaction is what actually serializes movements
	if lock, err := utils.OrganizationLock(ctx, organizationId, "Movement", "reconciler.go", "MoveForward"); err == nil {
		defer lock.Release(ctx)
	}

	stages, err := models.FetchWorkflowStages(db.WithContext(ctx), organizationId)
	if err != nil {
		config.LogError(logger, "reconciler.go", "MoveForward", "FetchWorkflowStages", organizationId, err)
		return nil, err
	}

	result := &MovementResult{Succeeded: []MovementOutcome{}, Failed: []MovementFailure{}}
	for _, req := range requests {
		outcome, err := moveItemForward(ctx, db, stages, organizationId, actorId, req, target)
		if err != nil {
			reason := FailureReason(err)
			if reason == "Internal" || reason == "PositionNotFound" {
				config.LogError(logger, "reconciler.go", "MoveForward", "moveItemForward", req, err)
			}
			result.Failed = append(result.Failed, MovementFailure{ItemId: req.ItemId, Reason: reason})
			continue
		}
		result.Succeeded = append(result.Succeeded, *outcome)
	}
	return result, nil
}

func moveItemForward(ctx context.Context, db *gorm.DB, stages []*models.WorkflowStage, organizationId string, actorId int, req MovementRequest, target *Position) (*MovementOutcome, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// resolve the destination before touching the ledger
	var destination *Position
	if target != nil {
		if _, err := StageAt(stages, *target); err != nil {
			return nil, err
		}
		destination = target
	} else if req.Source != nil {
		next, err := NextPosition(stages, *req.Source)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrEndOfWorkflow
		}
		destination = next
	} else {
		destination = FirstPosition(stages)
		if destination == nil {
			return nil, ErrEndOfWorkflow
		}
	}
	destinationStage, err := StageAt(stages, *destination)
	if err != nil {
		return nil, err
	}

	var outcome *MovementOutcome
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if config.StrictMovementGuard() {
			if err := AcquireItemMovementLock(tx, organizationId, req.ItemId); err != nil {
				return err
			}
			defer ReleaseItemMovementLock(tx, organizationId, req.ItemId)
		}

		item, err := models.FetchItemForUpdate(tx, organizationId, req.ItemId)
		if err != nil {
			return err
		}

		if req.Source == nil {
			// draw from the new pool
			pool, err := models.NewPoolQuantity(tx, organizationId, item)
			if err != nil {
				return err
			}
			if req.Quantity > pool {
				return ErrInsufficientQuantity
			}
			if err := models.MarkItemInProgress(tx, item.ID); err != nil {
				return err
			}
		} else {
			if _, err := StageAt(stages, *req.Source); err != nil {
				return err
			}
			alloc, err := models.FetchAllocationForUpdate(tx, organizationId, item.ID, req.Source.StageId, req.Source.SubStageId)
			if err != nil {
				return err
			}
			if alloc == nil || alloc.Quantity < req.Quantity {
				return ErrInsufficientQuantity
			}
			drained, err := models.DecrementAllocation(tx, alloc, req.Quantity)
			if err != nil {
				return err
			}
			if !drained {
				return ErrInsufficientQuantity
			}
		}

		if err := models.IncrementAllocation(tx, organizationId, item.ID, destination.StageId, destination.SubStageId, req.Quantity); err != nil {
			return err
		}

		completed := false
		if destinationStage.IsTerminal != nil && *destinationStage.IsTerminal {
			done, err := models.CompleteItemQuantity(tx, item, req.Quantity)
			if err != nil {
				return err
			}
			if !done {
				return ErrInsufficientQuantity
			}
			completed = item.RemainingQuantity-req.Quantity == 0
		}

		history := models.ItemMovementHistory{
			OrganizationId: organizationId,
			ItemId:         item.ID,
			ToStageId:      destination.StageId,
			ToSubStageId:   destination.SubStageId,
			Quantity:       req.Quantity,
			MovedBy:        actorId,
		}
		if req.Source != nil {
			history.FromStageId = &req.Source.StageId
			history.FromSubStageId = req.Source.SubStageId
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		outcome = &MovementOutcome{
			ItemId:      item.ID,
			Quantity:    req.Quantity,
			From:        req.Source,
			To:          *destination,
			IsCompleted: completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// the cached item row is stale after a forward move; eviction is
	// best-effort, the entry also carries a TTL
	_ = utils.RemoveRedisItem[models.Item](req.ItemId)
	return outcome, nil
}

// MoveToRework sends quantity back (or sideways) to an arbitrary stage with a
// mandatory reason. The target is not constrained by traversal order but may
// not be the terminal stage, and rework never touches RemainingQuantity: it
// is not progress toward completion, whatever the target.
func MoveToRework(ctx context.Context, requests []MovementRequest, targetStageId int, targetSubStageId *int, reason string) (*MovementResult, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	actorId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || actorId == 0 {
		return nil, errors.New("user id is required")
	}

	trimmedReason, err := ValidateReworkReason(reason)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	logger := config.GetLogger()

	if lock, err := utils.OrganizationLock(ctx, organizationId, "Movement", "reconciler.go", "MoveToRework"); err == nil {
		defer lock.Release(ctx)
	}

	stages, err := models.FetchWorkflowStages(db.WithContext(ctx), organizationId)
	if err != nil {
		config.LogError(logger, "reconciler.go", "MoveToRework", "FetchWorkflowStages", organizationId, err)
		return nil, err
	}

	destination, err := resolveReworkDestination(stages, targetStageId, targetSubStageId)
	if err != nil {
		return nil, err
	}

	result := &MovementResult{Succeeded: []MovementOutcome{}, Failed: []MovementFailure{}}
	for _, req := range requests {
		outcome, err := moveItemToRework(ctx, db, stages, organizationId, actorId, req, *destination, trimmedReason)
		if err != nil {
			reason := FailureReason(err)
			if reason == "Internal" || reason == "PositionNotFound" {
				config.LogError(logger, "reconciler.go", "MoveToRework", "moveItemToRework", req, err)
			}
			result.Failed = append(result.Failed, MovementFailure{ItemId: req.ItemId, Reason: reason})
			continue
		}
		result.Succeeded = append(result.Succeeded, *outcome)
	}
	return result, nil
}

// resolveReworkDestination validates a rework target before any ledger work.
// A bare target stage resolves to its entry position. The terminal stage is
// rejected outright: quantity sent there would sit at the completion stage
// without ever counting toward completion.
func resolveReworkDestination(stages []*models.WorkflowStage, targetStageId int, targetSubStageId *int) (*Position, error) {
	idx := stageIndex(stages, targetStageId)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}
	stage := stages[idx]
	if stage.IsTerminal != nil && *stage.IsTerminal {
		return nil, ErrInvalidReworkTarget
	}
	if targetSubStageId == nil {
		return enterStage(stage), nil
	}
	destination := Position{StageId: targetStageId, SubStageId: targetSubStageId}
	if _, err := StageAt(stages, destination); err != nil {
		return nil, err
	}
	return &destination, nil
}

func moveItemToRework(ctx context.Context, db *gorm.DB, stages []*models.WorkflowStage, organizationId string, actorId int, req MovementRequest, destination Position, reason string) (*MovementOutcome, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	// rework always comes from a concrete position: the new pool has
	// nothing to send back
	if req.Source == nil {
		return nil, ErrPositionNotFound
	}
	if _, err := StageAt(stages, *req.Source); err != nil {
		return nil, err
	}

	var outcome *MovementOutcome
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if config.StrictMovementGuard() {
			if err := AcquireItemMovementLock(tx, organizationId, req.ItemId); err != nil {
				return err
			}
			defer ReleaseItemMovementLock(tx, organizationId, req.ItemId)
		}

		item, err := models.FetchItemForUpdate(tx, organizationId, req.ItemId)
		if err != nil {
			return err
		}

		alloc, err := models.FetchAllocationForUpdate(tx, organizationId, item.ID, req.Source.StageId, req.Source.SubStageId)
		if err != nil {
			return err
		}
		if alloc == nil || alloc.Quantity < req.Quantity {
			return ErrInsufficientQuantity
		}
		drained, err := models.DecrementAllocation(tx, alloc, req.Quantity)
		if err != nil {
			return err
		}
		if !drained {
			return ErrInsufficientQuantity
		}

		if err := models.IncrementAllocation(tx, organizationId, item.ID, destination.StageId, destination.SubStageId, req.Quantity); err != nil {
			return err
		}

		history := models.ItemMovementHistory{
			OrganizationId: organizationId,
			ItemId:         item.ID,
			FromStageId:    &req.Source.StageId,
			FromSubStageId: req.Source.SubStageId,
			ToStageId:      destination.StageId,
			ToSubStageId:   destination.SubStageId,
			Quantity:       req.Quantity,
			ReworkReason:   &reason,
			MovedBy:        actorId,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		outcome = &MovementOutcome{
			ItemId:   item.ID,
			Quantity: req.Quantity,
			From:     req.Source,
			To:       destination,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}
