package domain

// Activity is the coarse per-participant status shown to observers.
type Activity string

const (
	ActivityIdle     Activity = "idle"
	ActivityThinking Activity = "thinking"
	ActivityAnswered Activity = "answered"
	ActivityJudging  Activity = "judging"
	ActivityJudged   Activity = "judged"
)

// ParticipantState is the derived per-round view of one participant. It is
// recomputed from the round's step sequence and is never independently
// authoritative.
type ParticipantState struct {
	ParticipantID string
	HasAnswered   bool
	HasJudged     bool
	Activity      Activity
}

// ReplayParticipantStates rebuilds the per-participant state map from a
// round's step sequence. Only successful steps count; failed and running
// steps leave the flags untouched, except that a running step marks its
// actor as busy.
func ReplayParticipantStates(participants []string, steps []Step) map[string]*ParticipantState {
	states := make(map[string]*ParticipantState, len(participants))
	for _, participantID := range participants {
		states[participantID] = &ParticipantState{
			ParticipantID: participantID,
			Activity:      ActivityIdle,
		}
	}

	for _, step := range steps {
		state, ok := states[step.ActorID]
		if !ok {
			continue
		}
		switch step.Status {
		case StepStatusSuccess:
			switch step.Type {
			case StepTypeModelAnswer:
				state.HasAnswered = true
				state.Activity = ActivityAnswered
			case StepTypeModelJudge:
				state.HasJudged = true
				state.Activity = ActivityJudged
			}
		case StepStatusRunning:
			switch step.Type {
			case StepTypeModelAnswer, StepTypeMasterTopic, StepTypeMasterQuestion:
				state.Activity = ActivityThinking
			case StepTypeModelJudge:
				state.Activity = ActivityJudging
			}
		}
	}
	return states
}

// AnsweredFlags projects the hasAnswered flags out of a state map.
func AnsweredFlags(states map[string]*ParticipantState) map[string]bool {
	flags := make(map[string]bool, len(states))
	for participantID, state := range states {
		flags[participantID] = state.HasAnswered
	}
	return flags
}

// JudgedFlags projects the hasJudged flags out of a state map.
func JudgedFlags(states map[string]*ParticipantState) map[string]bool {
	flags := make(map[string]bool, len(states))
	for participantID, state := range states {
		flags[participantID] = state.HasJudged
	}
	return flags
}
