package control

import (
	"testing"
)

func TestResolve_SingleFactionAboveThreshold(t *testing.T) {
	r := Resolve(map[string]int{"A": 60}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "A" {
		t.Errorf("Expected A to control, got %q", r.ControllerID)
	}
	if r.Contested {
		t.Error("Expected uncontested control with no runner-up")
	}
}

func TestResolve_AtThresholdIsNotControl(t *testing.T) {
	// Strict inequality: exactly the threshold does not grant control.
	r := Resolve(map[string]int{"A": 50}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "" {
		t.Errorf("Expected no controller at threshold, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested when no faction exceeds threshold")
	}
}

func TestResolve_TieAboveThreshold(t *testing.T) {
	// Two factions tied above the threshold - no controller.
	r := Resolve(map[string]int{"A": 70, "B": 70}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "" {
		t.Errorf("Expected no controller on a tie, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested on a tie")
	}
}

func TestResolve_LeaderWithDistantRunnerUp(t *testing.T) {
	r := Resolve(map[string]int{"A": 80, "B": 30, "C": 10}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "A" {
		t.Errorf("Expected A to control, got %q", r.ControllerID)
	}
	if r.Contested {
		t.Error("Expected uncontested control with a distant runner-up")
	}
}

func TestResolve_RunnerUpWithinMargin(t *testing.T) {
	// A controls but B is within the contest margin.
	r := Resolve(map[string]int{"A": 60, "B": 52}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "A" {
		t.Errorf("Expected A to control, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested when runner-up is within margin of leader")
	}
}

func TestResolve_RunnerUpExactlyAtMargin(t *testing.T) {
	// runner-up == leader - margin counts as contested.
	r := Resolve(map[string]int{"A": 60, "B": 50}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "A" {
		t.Errorf("Expected A to control, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested when runner-up is exactly at margin boundary")
	}
}

func TestResolve_NobodyAboveThreshold(t *testing.T) {
	r := Resolve(map[string]int{"A": 45, "B": 30}, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "" {
		t.Errorf("Expected no controller, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested when nobody exceeds threshold")
	}
}

func TestResolve_EmptyInfluence(t *testing.T) {
	r := Resolve(nil, DefaultThreshold, DefaultContestMargin)

	if r.ControllerID != "" {
		t.Errorf("Expected no controller with no influence rows, got %q", r.ControllerID)
	}
	if !r.Contested {
		t.Error("Expected contested with no influence rows")
	}
}

func TestResolve_Deterministic(t *testing.T) {
	levels := map[string]int{"A": 72, "B": 55, "C": 40, "D": 0}

	first := Resolve(levels, DefaultThreshold, DefaultContestMargin)
	for i := 0; i < 100; i++ {
		if got := Resolve(levels, DefaultThreshold, DefaultContestMargin); got != first {
			t.Fatalf("Resolution not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestChanged(t *testing.T) {
	r := Result{ControllerID: "A"}

	if !r.Changed("") {
		t.Error("Expected change from no controller to A")
	}
	if !r.Changed("B") {
		t.Error("Expected change from B to A")
	}
	if r.Changed("A") {
		t.Error("Expected no change from A to A")
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-50, 0},
		{0, 0},
		{42, 42},
		{100, 100},
		{170, 100},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
