package blocksync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCompatiblePeers is returned when no connected peer announces the
	// chain-weight fields needed to compare its chain with ours.
	ErrNoCompatiblePeers = errors.New("connected compatible peers list is empty")
	// ErrForkChoiceViolation is returned when the selected peers do not
	// announce a chain heavier than ours.
	ErrForkChoiceViolation = errors.New("violation of fork choice rule")
	// ErrSyncInProgress is returned by Run while another run is active.
	ErrSyncInProgress = errors.New("block synchronization is already running")
)

// PenalizeAndRestartError reports a protocol violation by PeerID. The peer is
// penalized and the received block is processed again.
type PenalizeAndRestartError struct {
	PeerID string
	Reason string
}

func (e PenalizeAndRestartError) Error() string {
	return fmt.Sprintf("penalize peer %s and restart: %s", e.PeerID, e.Reason)
}

// RestartError reports an incomplete run that does not warrant a penalty. The
// received block is processed again.
type RestartError struct {
	Reason string
}

func (e RestartError) Error() string {
	return fmt.Sprintf("restart synchronization: %s", e.Reason)
}

// Outcome is how a synchronization run ended.
type Outcome int

const (
	OutcomeFatal Outcome = iota
	OutcomeCompleted
	OutcomePenalizeAndRestart
	OutcomeRestart
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomePenalizeAndRestart:
		return "penalize_and_restart"
	case OutcomeRestart:
		return "restart"
	default:
		return "fatal"
	}
}

// classify maps the error returned by a run onto its outcome.
func classify(err error) Outcome {
	var (
		penalize PenalizeAndRestartError
		restart  RestartError
	)
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.As(err, &penalize):
		return OutcomePenalizeAndRestart
	case errors.As(err, &restart):
		return OutcomeRestart
	}
	return OutcomeFatal
}
