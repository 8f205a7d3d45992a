package lifecycle

import (
	"errors"
	"testing"
)

func TestCanTransition_Table(t *testing.T) {
	all := []State{StateUploaded, StateProbed, StateProcessing, StateCompleted, StateFailed, StateCleaned}
	allowed := map[[2]State]bool{
		{StateUploaded, StateProbed}:      true,
		{StateUploaded, StateCleaned}:     true,
		{StateProbed, StateProcessing}:    true,
		{StateProbed, StateCleaned}:       true,
		{StateProcessing, StateCompleted}: true,
		{StateProcessing, StateFailed}:    true,
		{StateCompleted, StateCleaned}:    true,
		{StateFailed, StateCleaned}:       true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			err := checkTransition(from, to)
			if want && err != nil {
				t.Errorf("checkTransition(%s, %s) = %v", from, to, err)
			}
			if !want && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("checkTransition(%s, %s) = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}

func TestCleanupReport_Outcome(t *testing.T) {
	tests := []struct {
		name   string
		report CleanupReport
		want   Outcome
	}{
		{"empty", CleanupReport{}, OutcomeNothing},
		{"all removed", CleanupReport{Removed: []string{"a", "b"}}, OutcomeSucceeded},
		{"all failed", CleanupReport{Failed: []CleanupFailure{{Path: "a"}}}, OutcomeFailed},
		{"mixed", CleanupReport{Removed: []string{"a"}, Failed: []CleanupFailure{{Path: "b"}}}, OutcomePartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Outcome(); got != tt.want {
				t.Errorf("Outcome() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCleanupReport_Merge(t *testing.T) {
	r := CleanupReport{Removed: []string{"a"}}
	r.Merge(CleanupReport{Removed: []string{"b"}, Failed: []CleanupFailure{{Path: "c"}}})
	if len(r.Removed) != 2 || len(r.Failed) != 1 {
		t.Errorf("Merge result = %+v", r)
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateCleaned} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateUploaded, StateProbed, StateProcessing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
