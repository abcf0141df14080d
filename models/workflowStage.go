package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

// WorkflowStage is one ordered step of an organization's export workflow.
// Rows with an empty OrganizationId form the shared default template that is
// copied into every new organization.
type WorkflowStage struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	OrganizationId string              `gorm:"index;size:36" json:"organization_id"`
	Name           string              `gorm:"size:100;not null" json:"name" binding:"required"`
	SequenceOrder  int                 `gorm:"index;not null" json:"sequence_order"`
	Location       string              `gorm:"size:255" json:"location"`
	IsTerminal     *bool               `gorm:"not null;default:false" json:"is_terminal"`
	IsPackaging    *bool               `gorm:"not null;default:false" json:"is_packaging"`
	SubStages      []*WorkflowSubStage `gorm:"foreignKey:StageId" json:"sub_stages,omitempty"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s WorkflowStage) GetOrganizationId() string { return s.OrganizationId }

type WorkflowSubStage struct {
	ID            int       `gorm:"primary_key" json:"id"`
	StageId       int       `gorm:"index;not null" json:"stage_id"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	SequenceOrder int       `gorm:"index;not null" json:"sequence_order"`
	Location      string    `gorm:"size:255" json:"location"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkflowStage struct {
	Name        string `json:"name" binding:"required"`
	Location    string `json:"location"`
	IsTerminal  *bool  `json:"is_terminal"`
	IsPackaging *bool  `json:"is_packaging"`
}

type NewWorkflowSubStage struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

// defaultWorkflowTemplate is used when the shared template table is empty
// (fresh deployments).
var defaultWorkflowTemplate = []WorkflowStage{
	{Name: "Procurement", SequenceOrder: 1},
	{Name: "Processing", SequenceOrder: 2, SubStages: []*WorkflowSubStage{
		{Name: "Sorting", SequenceOrder: 1},
		{Name: "Grading", SequenceOrder: 2},
	}},
	{Name: "Quality Check", SequenceOrder: 3},
	{Name: "Packaging", SequenceOrder: 4, IsPackaging: utils.NewTrue()},
	{Name: "Shipment", SequenceOrder: 5},
	{Name: "Completed", SequenceOrder: 6, IsTerminal: utils.NewTrue()},
}

// ListWorkflowStages returns the organization's full ordered workflow with
// sub-stages ordered inside each stage. Fetched fresh per request; movement
// correctness depends on seeing current sequence orders.
func ListWorkflowStages(ctx context.Context) ([]*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	db := config.GetDB()
	return fetchWorkflowStages(db.WithContext(ctx), organizationId)
}

// fetchWorkflowStages loads the ordered workflow on the given handle, so the
// reconciler can reuse it inside a transaction.
func fetchWorkflowStages(tx *gorm.DB, organizationId string) ([]*WorkflowStage, error) {
	var stages []*WorkflowStage
	err := tx.Where("organization_id = ?", organizationId).
		Order("sequence_order").
		Preload("SubStages", func(db *gorm.DB) *gorm.DB {
			return db.Order("workflow_sub_stages.sequence_order")
		}).
		Find(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func FetchWorkflowStages(tx *gorm.DB, organizationId string) ([]*WorkflowStage, error) {
	return fetchWorkflowStages(tx, organizationId)
}

func GetWorkflowStage(ctx context.Context, id int) (*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	db := config.GetDB()
	var stage WorkflowStage
	err := db.WithContext(ctx).Where("organization_id = ?", organizationId).
		Preload("SubStages", func(db *gorm.DB) *gorm.DB {
			return db.Order("workflow_sub_stages.sequence_order")
		}).
		First(&stage, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func CreateWorkflowStage(ctx context.Context, input *NewWorkflowStage) (*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := utils.ValidateUnique[WorkflowStage](ctx, organizationId, "name", input.Name, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	stage := WorkflowStage{
		OrganizationId: organizationId,
		Name:           input.Name,
		Location:       input.Location,
		IsTerminal:     input.IsTerminal,
		IsPackaging:    input.IsPackaging,
	}
	if stage.IsTerminal == nil {
		stage.IsTerminal = utils.NewFalse()
	}
	if stage.IsPackaging == nil {
		stage.IsPackaging = utils.NewFalse()
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// append at the end of the sequence
		var maxOrder *int
		if err := tx.Model(&WorkflowStage{}).
			Where("organization_id = ?", organizationId).
			Select("max(sequence_order)").Scan(&maxOrder).Error; err != nil {
			return err
		}
		stage.SequenceOrder = utils.DereferencePtr(maxOrder) + 1
		return tx.Create(&stage).Error
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func UpdateWorkflowStage(ctx context.Context, id int, input *NewWorkflowStage) (*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if err := utils.ValidateUnique[WorkflowStage](ctx, organizationId, "name", input.Name, id); err != nil {
		return nil, err
	}

	stage, err := utils.FetchModel[WorkflowStage](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	updates := map[string]interface{}{
		"Name":     input.Name,
		"Location": input.Location,
	}
	if input.IsTerminal != nil {
		updates["IsTerminal"] = input.IsTerminal
	}
	if input.IsPackaging != nil {
		updates["IsPackaging"] = input.IsPackaging
	}
	if err := db.WithContext(ctx).Model(stage).Updates(updates).Error; err != nil {
		return nil, err
	}
	return stage, nil
}

// DeleteWorkflowStage removes a stage and its sub-stages. A stage that still
// holds item quantity (any allocation at the stage or one of its sub-stages)
// cannot be deleted.
func DeleteWorkflowStage(ctx context.Context, id int) (*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	stage, err := utils.FetchModel[WorkflowStage](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&ItemStageAllocation{}).
		Where("organization_id = ? AND stage_id = ?", organizationId, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("stage has allocated quantity")
	}
	var historyCount int64
	if err := db.WithContext(ctx).Model(&ItemMovementHistory{}).
		Where("organization_id = ? AND (from_stage_id = ? OR to_stage_id = ?)", organizationId, id, id).
		Count(&historyCount).Error; err != nil {
		return nil, err
	}
	if historyCount > 0 {
		return nil, errors.New("stage is referenced by movement history")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stage_id = ?", id).Delete(&WorkflowSubStage{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(stage).Error; err != nil {
			return err
		}
		// close the gap in sequence orders
		return tx.Model(&WorkflowStage{}).
			Where("organization_id = ? AND sequence_order > ?", organizationId, stage.SequenceOrder).
			UpdateColumn("sequence_order", gorm.Expr("sequence_order - 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// MoveWorkflowStage swaps the stage with its adjacent neighbor.
// direction is "up" (towards sequence 1) or "down".
func MoveWorkflowStage(ctx context.Context, id int, direction string) (*WorkflowStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if direction != "up" && direction != "down" {
		return nil, errors.New("direction must be up or down")
	}

	stage, err := utils.FetchModel[WorkflowStage](ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var neighbor WorkflowStage
		q := tx.Where("organization_id = ?", organizationId)
		if direction == "up" {
			q = q.Where("sequence_order < ?", stage.SequenceOrder).Order("sequence_order DESC")
		} else {
			q = q.Where("sequence_order > ?", stage.SequenceOrder).Order("sequence_order ASC")
		}
		if err := q.First(&neighbor).Error; err != nil {
			return errors.New("stage is already at the boundary")
		}

		if err := tx.Model(&WorkflowStage{}).Where("id = ?", stage.ID).
			UpdateColumn("sequence_order", neighbor.SequenceOrder).Error; err != nil {
			return err
		}
		if err := tx.Model(&WorkflowStage{}).Where("id = ?", neighbor.ID).
			UpdateColumn("sequence_order", stage.SequenceOrder).Error; err != nil {
			return err
		}
		stage.SequenceOrder, neighbor.SequenceOrder = neighbor.SequenceOrder, stage.SequenceOrder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

/* sub-stages */

// fetchOwnedStage loads a stage and checks tenancy via the parent; sub-stages
// carry no organization_id of their own.
func fetchOwnedStage(ctx context.Context, organizationId string, stageId int) (*WorkflowStage, error) {
	return utils.FetchModel[WorkflowStage](ctx, organizationId, stageId)
}

func CreateWorkflowSubStage(ctx context.Context, stageId int, input *NewWorkflowSubStage) (*WorkflowSubStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	if _, err := fetchOwnedStage(ctx, organizationId, stageId); err != nil {
		return nil, errors.New("stage not found")
	}

	db := config.GetDB()
	subStage := WorkflowSubStage{
		StageId:  stageId,
		Name:     input.Name,
		Location: input.Location,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&WorkflowSubStage{}).
			Where("stage_id = ? AND name = ?", stageId, input.Name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.New("duplicate name")
		}
		var maxOrder *int
		if err := tx.Model(&WorkflowSubStage{}).
			Where("stage_id = ?", stageId).
			Select("max(sequence_order)").Scan(&maxOrder).Error; err != nil {
			return err
		}
		subStage.SequenceOrder = utils.DereferencePtr(maxOrder) + 1
		return tx.Create(&subStage).Error
	})
	if err != nil {
		return nil, err
	}
	return &subStage, nil
}

func UpdateWorkflowSubStage(ctx context.Context, id int, input *NewWorkflowSubStage) (*WorkflowSubStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	subStage, err := fetchOwnedSubStage(ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(subStage).Updates(map[string]interface{}{
		"Name":     input.Name,
		"Location": input.Location,
	}).Error
	if err != nil {
		return nil, err
	}
	return subStage, nil
}

func DeleteWorkflowSubStage(ctx context.Context, id int) (*WorkflowSubStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	subStage, err := fetchOwnedSubStage(ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&ItemStageAllocation{}).
		Where("organization_id = ? AND sub_stage_id = ?", organizationId, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("sub-stage has allocated quantity")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(subStage).Error; err != nil {
			return err
		}
		return tx.Model(&WorkflowSubStage{}).
			Where("stage_id = ? AND sequence_order > ?", subStage.StageId, subStage.SequenceOrder).
			UpdateColumn("sequence_order", gorm.Expr("sequence_order - 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return subStage, nil
}

func MoveWorkflowSubStage(ctx context.Context, id int, direction string) (*WorkflowSubStage, error) {
	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	if direction != "up" && direction != "down" {
		return nil, errors.New("direction must be up or down")
	}

	subStage, err := fetchOwnedSubStage(ctx, organizationId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var neighbor WorkflowSubStage
		q := tx.Where("stage_id = ?", subStage.StageId)
		if direction == "up" {
			q = q.Where("sequence_order < ?", subStage.SequenceOrder).Order("sequence_order DESC")
		} else {
			q = q.Where("sequence_order > ?", subStage.SequenceOrder).Order("sequence_order ASC")
		}
		if err := q.First(&neighbor).Error; err != nil {
			return errors.New("sub-stage is already at the boundary")
		}

		if err := tx.Model(&WorkflowSubStage{}).Where("id = ?", subStage.ID).
			UpdateColumn("sequence_order", neighbor.SequenceOrder).Error; err != nil {
			return err
		}
		if err := tx.Model(&WorkflowSubStage{}).Where("id = ?", neighbor.ID).
			UpdateColumn("sequence_order", subStage.SequenceOrder).Error; err != nil {
			return err
		}
		subStage.SequenceOrder, neighbor.SequenceOrder = neighbor.SequenceOrder, subStage.SequenceOrder
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subStage, nil
}

// fetchOwnedSubStage resolves a sub-stage through its parent stage so tenancy
// is always checked.
func fetchOwnedSubStage(ctx context.Context, organizationId string, id int) (*WorkflowSubStage, error) {
	db := config.GetDB()
	var subStage WorkflowSubStage
	err := db.WithContext(ctx).
		Joins("JOIN workflow_stages ON workflow_stages.id = workflow_sub_stages.stage_id").
		Where("workflow_stages.organization_id = ?", organizationId).
		First(&subStage, "workflow_sub_stages.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subStage, nil
}

// SeedWorkflowTemplate inserts the built-in template as the shared template
// rows (organization_id = "") when none exist yet. Used by cmd/seed-admin on
// fresh deployments; existing template rows are left untouched.
func SeedWorkflowTemplate(ctx context.Context) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&WorkflowStage{}).Where("organization_id = ?", "").Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return seedDefaultWorkflow(tx, "")
	})
}

// seedDefaultWorkflow copies the shared template (organization_id = "") into a
// new organization. Falls back to the built-in template on fresh deployments.
func seedDefaultWorkflow(tx *gorm.DB, organizationId string) error {
	var template []*WorkflowStage
	err := tx.Where("organization_id = ?", "").
		Order("sequence_order").
		Preload("SubStages", func(db *gorm.DB) *gorm.DB {
			return db.Order("workflow_sub_stages.sequence_order")
		}).
		Find(&template).Error
	if err != nil {
		return err
	}

	if len(template) == 0 {
		template = make([]*WorkflowStage, 0, len(defaultWorkflowTemplate))
		for i := range defaultWorkflowTemplate {
			s := defaultWorkflowTemplate[i]
			template = append(template, &s)
		}
	}

	for _, t := range template {
		stage := WorkflowStage{
			OrganizationId: organizationId,
			Name:           t.Name,
			SequenceOrder:  t.SequenceOrder,
			Location:       t.Location,
			IsTerminal:     t.IsTerminal,
			IsPackaging:    t.IsPackaging,
		}
		if stage.IsTerminal == nil {
			stage.IsTerminal = utils.NewFalse()
		}
		if stage.IsPackaging == nil {
			stage.IsPackaging = utils.NewFalse()
		}
		if err := tx.Create(&stage).Error; err != nil {
			return err
		}
		for _, ts := range t.SubStages {
			subStage := WorkflowSubStage{
				StageId:       stage.ID,
				Name:          ts.Name,
				SequenceOrder: ts.SequenceOrder,
				Location:      ts.Location,
			}
			if err := tx.Create(&subStage).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
