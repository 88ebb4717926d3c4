// Package control implements the control-resolution rule for territories.
// It is pure so the transition rule can be tested without any I/O.
package control

// Reference tuning values. Both are configurable at the store boundary.
const (
	// DefaultThreshold is the influence a faction must strictly exceed
	// to control a territory.
	DefaultThreshold = 50

	// DefaultContestMargin is how close a runner-up may get to the leader
	// before the territory is flagged contested even with a controller.
	DefaultContestMargin = 10
)

// Influence levels are clamped to this range at the store boundary.
const (
	MinInfluence = 0
	MaxInfluence = 100
)

// Result is the outcome of resolving control for one territory.
type Result struct {
	// ControllerID is the controlling faction, or "" if none.
	ControllerID string

	// Contested is true when no faction controls the territory, or when
	// the runner-up is within the contest margin of the controller.
	Contested bool
}

// Clamp bounds an influence level to [MinInfluence, MaxInfluence].
func Clamp(level int) int {
	if level < MinInfluence {
		return MinInfluence
	}
	if level > MaxInfluence {
		return MaxInfluence
	}
	return level
}

// Resolve decides the controller of a territory from per-faction influence.
//
// The controller is the faction with the strictly highest influence, provided
// that value strictly exceeds threshold. A tie at the top means no controller,
// even above the threshold. Contested is set when there is no controller, or
// when the runner-up is within margin of the leader.
func Resolve(levels map[string]int, threshold, margin int) Result {
	leaderID := ""
	leader := 0
	runnerUp := 0
	tied := false

	for factionID, level := range levels {
		switch {
		case leaderID == "" || level > leader:
			if leaderID != "" {
				runnerUp = leader
			}
			leaderID = factionID
			leader = level
			tied = false
		case level == leader:
			tied = true
			runnerUp = level
		case level > runnerUp:
			runnerUp = level
		}
	}

	if leaderID == "" || tied || leader <= threshold {
		return Result{Contested: true}
	}

	return Result{
		ControllerID: leaderID,
		Contested:    runnerUp >= leader-margin,
	}
}

// Changed reports whether the controller differs from a previous assignment.
func (r Result) Changed(prevControllerID string) bool {
	return r.ControllerID != prevControllerID
}
