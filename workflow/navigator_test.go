package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
)

func makeStage(id int, subIds ...int) *models.WorkflowStage {
	stage := &models.WorkflowStage{ID: id, SequenceOrder: id}
	for i, subId := range subIds {
		stage.SubStages = append(stage.SubStages, &models.WorkflowSubStage{
			ID:            subId,
			StageId:       id,
			SequenceOrder: i + 1,
		})
	}
	return stage
}

func intPtr(v int) *int { return &v }

// A(no subs), B(B1, B2), C(no subs)
func sampleWorkflow() []*models.WorkflowStage {
	return []*models.WorkflowStage{
		makeStage(1),
		makeStage(2, 21, 22),
		makeStage(3),
	}
}

func TestFirstPosition(t *testing.T) {
	if pos := FirstPosition(nil); pos != nil {
		t.Fatalf("expected nil for empty workflow, got %+v", pos)
	}

	pos := FirstPosition(sampleWorkflow())
	if pos == nil || pos.StageId != 1 || pos.SubStageId != nil {
		t.Fatalf("expected bare stage 1, got %+v", pos)
	}

	withSubs := []*models.WorkflowStage{makeStage(5, 51, 52)}
	pos = FirstPosition(withSubs)
	if pos == nil || pos.StageId != 5 || pos.SubStageId == nil || *pos.SubStageId != 51 {
		t.Fatalf("expected stage 5 sub 51, got %+v", pos)
	}
}

func TestNextPositionTraversal(t *testing.T) {
	stages := sampleWorkflow()

	// forward traversal skips the bare position of a stage with sub-stages
	want := []Position{
		{StageId: 1},
		{StageId: 2, SubStageId: intPtr(21)},
		{StageId: 2, SubStageId: intPtr(22)},
		{StageId: 3},
	}

	pos := FirstPosition(stages)
	var visited []Position
	for pos != nil {
		visited = append(visited, *pos)
		next, err := NextPosition(stages, *pos)
		if err != nil {
			t.Fatalf("unexpected error at %+v: %v", pos, err)
		}
		pos = next
		if len(visited) > 10 {
			t.Fatal("traversal did not terminate")
		}
	}

	if len(visited) != len(want) {
		t.Fatalf("visited %d positions, want %d: %+v", len(visited), len(want), visited)
	}
	for i := range want {
		if !visited[i].SameAs(want[i]) {
			t.Errorf("position %d: got %+v, want %+v", i, visited[i], want[i])
		}
	}
}

func TestPreviousPosition(t *testing.T) {
	stages := sampleWorkflow()

	tests := []struct {
		name    string
		current Position
		want    *Position
	}{
		{"first stage has no predecessor", Position{StageId: 1}, nil},
		// stepping back from a first sub-stage stops at the bare stage,
		// not the previous stage's tail
		{"first sub-stage steps to bare stage", Position{StageId: 2, SubStageId: intPtr(21)}, &Position{StageId: 2}},
		{"bare stage steps to previous stage", Position{StageId: 2}, &Position{StageId: 1}},
		{"sub-stage steps to prior sub-stage", Position{StageId: 2, SubStageId: intPtr(22)}, &Position{StageId: 2, SubStageId: intPtr(21)}},
		{"stage after sub-staged stage steps to its last sub-stage", Position{StageId: 3}, &Position{StageId: 2, SubStageId: intPtr(22)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreviousPosition(stages, tt.current)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || !got.SameAs(*tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestForwardBackwardInverse(t *testing.T) {
	stages := sampleWorkflow()

	pos := FirstPosition(stages)
	for pos != nil {
		next, err := NextPosition(stages, *pos)
		if err != nil {
			t.Fatalf("next from %+v: %v", pos, err)
		}
		if next == nil {
			break
		}
		back, err := PreviousPosition(stages, *next)
		if err != nil {
			t.Fatalf("previous from %+v: %v", next, err)
		}
		if back == nil {
			t.Fatalf("previous from %+v returned nil", next)
		}
		// backward traversal surfaces the bare stage before crossing
		// into the prior stage; walking one more step must reach pos
		if !back.SameAs(*pos) {
			further, err := PreviousPosition(stages, *back)
			if err != nil {
				t.Fatalf("previous from %+v: %v", back, err)
			}
			if further == nil || !further.SameAs(*pos) {
				t.Fatalf("inverse broken: %+v -> %+v -> %+v, want back at %+v", pos, next, back, pos)
			}
		}
		pos = next
	}
}

func TestNextPositionNotFound(t *testing.T) {
	stages := sampleWorkflow()

	if _, err := NextPosition(stages, Position{StageId: 99}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("unknown stage: got %v, want ErrPositionNotFound", err)
	}
	if _, err := NextPosition(stages, Position{StageId: 2, SubStageId: intPtr(99)}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("unknown sub-stage: got %v, want ErrPositionNotFound", err)
	}
	if _, err := PreviousPosition(stages, Position{StageId: 99}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("unknown stage backward: got %v, want ErrPositionNotFound", err)
	}
	// sub-stage belonging to another stage is still not found
	if _, err := NextPosition(stages, Position{StageId: 1, SubStageId: intPtr(21)}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("foreign sub-stage: got %v, want ErrPositionNotFound", err)
	}
}

func TestSubsequentStages(t *testing.T) {
	stages := sampleWorkflow()

	got, err := SubsequentStages(stages, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("after stage 1: got %d stages", len(got))
	}

	got, err = SubsequentStages(stages, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("after last stage: got %d stages, want 0", len(got))
	}

	if _, err := SubsequentStages(stages, 42); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("unknown stage: got %v, want ErrPositionNotFound", err)
	}
}

func TestStageAt(t *testing.T) {
	stages := sampleWorkflow()

	stage, err := StageAt(stages, Position{StageId: 2, SubStageId: intPtr(22)})
	if err != nil || stage.ID != 2 {
		t.Fatalf("got %+v, %v", stage, err)
	}
	if _, err := StageAt(stages, Position{StageId: 3, SubStageId: intPtr(22)}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("sub-stage under wrong stage: got %v, want ErrPositionNotFound", err)
	}
}
