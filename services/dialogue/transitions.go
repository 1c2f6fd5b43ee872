// File: services/dialogue/transitions.go
package dialogue

import (
	"fmt"

	"calbook/models"
)

// transitions lists every legal phase change. Self edges are re-prompts.
var transitions = map[models.DialoguePhase][]models.DialoguePhase{
	models.PhaseCollecting: {
		models.PhaseCollecting,
		models.PhaseProposingSlots,
		models.PhaseAwaitingConfirmation,
		models.PhaseDone,
	},
	models.PhaseProposingSlots: {
		models.PhaseProposingSlots,
		models.PhaseAwaitingConfirmation,
		models.PhaseCollecting,
		models.PhaseDone,
	},
	models.PhaseAwaitingConfirmation: {
		models.PhaseAwaitingConfirmation,
		models.PhaseBooking,
		models.PhaseCollecting,
		models.PhaseDone,
	},
	models.PhaseBooking: {
		models.PhaseDone,
		models.PhaseCollecting,
	},
	models.PhaseDone: {
		models.PhaseDone,
		models.PhaseCollecting,
	},
}

// CanTransition reports whether from → to is in the table.
func CanTransition(from, to models.DialoguePhase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// transition moves s to the given phase or fails without touching it.
func transition(s *models.Session, to models.DialoguePhase) error {
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Phase, to)
	}
	s.Phase = to
	return nil
}
