package workflow

import (
	"errors"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
)

// ErrPositionNotFound means the caller handed us a position that does not
// exist in the workflow it supplied. That is a data inconsistency, not a
// traversal boundary, so it is distinct from a nil "no further position".
var ErrPositionNotFound = errors.New("position not found in workflow")

// Position is a location in the workflow: a stage, optionally narrowed to one
// of its sub-stages.
type Position struct {
	StageId    int  `json:"stage_id"`
	SubStageId *int `json:"sub_stage_id"`
}

func (p Position) SameAs(other Position) bool {
	if p.StageId != other.StageId {
		return false
	}
	if (p.SubStageId == nil) != (other.SubStageId == nil) {
		return false
	}
	return p.SubStageId == nil || *p.SubStageId == *other.SubStageId
}

// FirstPosition is where quantity lands on its first hop out of the new pool:
// the first stage's first sub-stage, or the bare first stage. Nil for an
// empty workflow.
func FirstPosition(stages []*models.WorkflowStage) *Position {
	if len(stages) == 0 {
		return nil
	}
	return enterStage(stages[0])
}

// NextPosition returns the position after current in traversal order, or nil
// at the end of the workflow. Traversal runs through each stage's sub-stages
// in order; a stage without sub-stages is a single stop. Entering a stage
// that has sub-stages lands directly on its first sub-stage: the bare-stage
// position is skipped going forward.
func NextPosition(stages []*models.WorkflowStage, current Position) (*Position, error) {
	idx := stageIndex(stages, current.StageId)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}
	stage := stages[idx]

	if current.SubStageId != nil {
		subIdx := subStageIndex(stage, *current.SubStageId)
		if subIdx < 0 {
			return nil, ErrPositionNotFound
		}
		if subIdx+1 < len(stage.SubStages) {
			next := stage.SubStages[subIdx+1].ID
			return &Position{StageId: stage.ID, SubStageId: &next}, nil
		}
		// last sub-stage: advance to the next stage
	}

	if idx+1 >= len(stages) {
		return nil, nil
	}
	return enterStage(stages[idx+1]), nil
}

// PreviousPosition returns the position before current, or nil at the start.
// Not a mirror of NextPosition: stepping back from a stage's first sub-stage
// stops at the bare stage itself before crossing into the previous stage, so
// backward traversal surfaces the "at the stage, before its sub-stages"
// position that forward traversal skips.
func PreviousPosition(stages []*models.WorkflowStage, current Position) (*Position, error) {
	idx := stageIndex(stages, current.StageId)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}
	stage := stages[idx]

	if current.SubStageId != nil {
		subIdx := subStageIndex(stage, *current.SubStageId)
		if subIdx < 0 {
			return nil, ErrPositionNotFound
		}
		if subIdx == 0 {
			return &Position{StageId: stage.ID}, nil
		}
		prev := stage.SubStages[subIdx-1].ID
		return &Position{StageId: stage.ID, SubStageId: &prev}, nil
	}

	if idx == 0 {
		return nil, nil
	}
	prevStage := stages[idx-1]
	if len(prevStage.SubStages) > 0 {
		last := prevStage.SubStages[len(prevStage.SubStages)-1].ID
		return &Position{StageId: prevStage.ID, SubStageId: &last}, nil
	}
	return &Position{StageId: prevStage.ID}, nil
}

// SubsequentStages returns the main stages strictly after the current stage,
// in order. Sub-stage granularity is ignored; the current stage is excluded
// even when the caller still has sub-stages left inside it.
func SubsequentStages(stages []*models.WorkflowStage, currentStageId int) ([]*models.WorkflowStage, error) {
	idx := stageIndex(stages, currentStageId)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}
	return stages[idx+1:], nil
}

// StageAt resolves a position's stage, verifying the sub-stage (when set)
// belongs to it.
func StageAt(stages []*models.WorkflowStage, pos Position) (*models.WorkflowStage, error) {
	idx := stageIndex(stages, pos.StageId)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}
	if pos.SubStageId != nil && subStageIndex(stages[idx], *pos.SubStageId) < 0 {
		return nil, ErrPositionNotFound
	}
	return stages[idx], nil
}

func enterStage(stage *models.WorkflowStage) *Position {
	if len(stage.SubStages) > 0 {
		first := stage.SubStages[0].ID
		return &Position{StageId: stage.ID, SubStageId: &first}
	}
	return &Position{StageId: stage.ID}
}

func stageIndex(stages []*models.WorkflowStage, stageId int) int {
	for i, s := range stages {
		if s.ID == stageId {
			return i
		}
	}
	return -1
}

func subStageIndex(stage *models.WorkflowStage, subStageId int) int {
	for i, s := range stage.SubStages {
		if s.ID == subStageId {
			return i
		}
	}
	return -1
}
