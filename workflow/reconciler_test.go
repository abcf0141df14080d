package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
)

func TestValidateReworkReason(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		want    string
		wantErr bool
	}{
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"too short", "ab", "", true},
		{"whitespace padding does not count", "  a  ", "", true},
		{"minimum length", "bad", "bad", false},
		{"trimmed", "  defect found  ", "defect found", false},
		{"multibyte runes count as runes", "不良品", "不良品", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateReworkReason(tt.reason)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReworkReason) {
					t.Fatalf("got %v, want ErrInvalidReworkReason", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrPositionNotFound, "PositionNotFound"},
		{ErrEndOfWorkflow, "EndOfWorkflow"},
		{ErrInsufficientQuantity, "InsufficientQuantity"},
		{ErrInvalidReworkReason, "InvalidReworkReason"},
		{ErrInvalidReworkTarget, "InvalidReworkTarget"},
		{ErrInvalidQuantity, "InvalidQuantity"},
		{utils.ErrorRecordNotFound, "ItemNotFound"},
		{errors.New("driver: bad connection"), "Internal"},
	}
	for _, tt := range tests {
		if got := FailureReason(tt.err); got != tt.want {
			t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestResolveReworkDestination(t *testing.T) {
	stages := sampleWorkflow()
	terminal := makeStage(4)
	terminal.IsTerminal = utils.NewTrue()
	stages = append(stages, terminal)

	// a bare target stage resolves to its entry position
	dest, err := resolveReworkDestination(stages, 2, nil)
	if err != nil || dest == nil || !dest.SameAs(Position{StageId: 2, SubStageId: intPtr(21)}) {
		t.Fatalf("bare target: got %+v, %v", dest, err)
	}

	dest, err = resolveReworkDestination(stages, 2, intPtr(22))
	if err != nil || dest == nil || !dest.SameAs(Position{StageId: 2, SubStageId: intPtr(22)}) {
		t.Fatalf("explicit sub-stage target: got %+v, %v", dest, err)
	}

	// quantity sent to the terminal stage would sit at the completion stage
	// without counting toward completion, so the target is rejected
	if _, err := resolveReworkDestination(stages, 4, nil); !errors.Is(err, ErrInvalidReworkTarget) {
		t.Fatalf("terminal target: got %v, want ErrInvalidReworkTarget", err)
	}

	if _, err := resolveReworkDestination(stages, 99, nil); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("unknown stage: got %v, want ErrPositionNotFound", err)
	}
	if _, err := resolveReworkDestination(stages, 3, intPtr(21)); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("foreign sub-stage: got %v, want ErrPositionNotFound", err)
	}
}

func TestPositionSameAs(t *testing.T) {
	a := Position{StageId: 2, SubStageId: intPtr(21)}
	b := Position{StageId: 2, SubStageId: intPtr(21)}
	if !a.SameAs(b) {
		t.Fatal("identical positions compared unequal")
	}
	if a.SameAs(Position{StageId: 2}) {
		t.Fatal("sub-stage position equals bare stage")
	}
	if a.SameAs(Position{StageId: 2, SubStageId: intPtr(22)}) {
		t.Fatal("different sub-stages compared equal")
	}
	if (Position{StageId: 1}).SameAs(Position{StageId: 2}) {
		t.Fatal("different stages compared equal")
	}
}
