package domain

// Turn ordering rules. These are pure functions over the ordered participant
// list; ordering is strictly positional so the same inputs always yield the
// same turn, which is what makes a round resumable from persisted state.

// clockwiseFromAfter returns the participants in circular order starting
// immediately after the given participant, excluding it.
func clockwiseFromAfter(participants []string, fromID string) []string {
	start := -1
	for i, participantID := range participants {
		if participantID == fromID {
			start = i
			break
		}
	}
	if start == -1 {
		// Unknown master: fall back to list order so the round can still
		// make progress.
		return append([]string(nil), participants...)
	}
	ordered := make([]string, 0, len(participants)-1)
	for offset := 1; offset < len(participants); offset++ {
		ordered = append(ordered, participants[(start+offset)%len(participants)])
	}
	return ordered
}

// NextAnswerer returns the next participant that should answer, starting
// clockwise after the master and skipping the master entirely. The second
// return is false when all non-master participants have answered.
func NextAnswerer(participants []string, masterID string, hasAnswered map[string]bool) (string, bool) {
	for _, participantID := range clockwiseFromAfter(participants, masterID) {
		if !hasAnswered[participantID] {
			return participantID, true
		}
	}
	return "", false
}

// NextJudge returns the next participant that should judge. Non-master
// participants judge first in clockwise-after-master order; the master is
// eligible only once every other participant has judged, and is therefore
// always last. The second return is false when everyone, master included,
// has judged.
func NextJudge(participants []string, masterID string, hasJudged map[string]bool) (string, bool) {
	for _, participantID := range clockwiseFromAfter(participants, masterID) {
		if !hasJudged[participantID] {
			return participantID, true
		}
	}
	if !hasJudged[masterID] {
		return masterID, true
	}
	return "", false
}

// MasterForRound returns the master for a 1-based round number. Round 1's
// master is firstMasterID; each following round rotates to the next
// participant in session order, wrapping around.
func MasterForRound(participants []string, firstMasterID string, roundNumber int) string {
	if len(participants) == 0 {
		return ""
	}
	start := 0
	for i, participantID := range participants {
		if participantID == firstMasterID {
			start = i
			break
		}
	}
	return participants[(start+roundNumber-1)%len(participants)]
}
