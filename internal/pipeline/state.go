package pipeline

import (
	"github.com/Brownie44l1/seedbot/internal/model"
	"github.com/Brownie44l1/seedbot/internal/telegram"
)

// State is a step of the webhook pipeline.
type State int

const (
	StateReceived State = iota
	StateAttachmentChecked
	StateNoPhoto
	StateFetched
	StatePreprocessed
	StatePredicted
	StateFormatted
	StateReplied
	StateAcknowledged
)

var stateNames = [...]string{
	StateReceived:          "received",
	StateAttachmentChecked: "attachment_checked",
	StateNoPhoto:           "no_photo",
	StateFetched:           "fetched",
	StatePreprocessed:      "preprocessed",
	StatePredicted:         "predicted",
	StateFormatted:         "formatted",
	StateReplied:           "replied",
	StateAcknowledged:      "acknowledged",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome records what happened to one webhook event.
type Outcome struct {
	EventID    string
	Path       []State
	HasMessage bool
	ChatID     int64
	PhotoRef   telegram.PhotoRef
	Result     *model.Result
	// Err is the stage failure, if any. It is logged, never returned to the
	// webhook caller.
	Err error
}

func (o *Outcome) advance(s State) {
	o.Path = append(o.Path, s)
}

// Reached reports whether the pipeline passed through s.
func (o Outcome) Reached(s State) bool {
	for _, v := range o.Path {
		if v == s {
			return true
		}
	}
	return false
}

// LastStage is the last state before acknowledgment.
func (o Outcome) LastStage() State {
	for i := len(o.Path) - 1; i >= 0; i-- {
		if o.Path[i] != StateAcknowledged {
			return o.Path[i]
		}
	}
	return StateReceived
}

// Final is the terminal state, StateAcknowledged once Handle has returned.
func (o Outcome) Final() State {
	if len(o.Path) == 0 {
		return StateReceived
	}
	return o.Path[len(o.Path)-1]
}
