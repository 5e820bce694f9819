package playback

// Status is the playback state owned by the controller and mirrored elsewhere.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String. Unknown names report false.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "idle":
		return StatusIdle, true
	case "playing":
		return StatusPlaying, true
	case "paused":
		return StatusPaused, true
	case "stopped":
		return StatusStopped, true
	default:
		return StatusIdle, false
	}
}

// EventType is a lifecycle event reported by a speech engine for one utterance.
type EventType string

const (
	EventStart       EventType = "start"
	EventEnd         EventType = "end"
	EventInterrupted EventType = "interrupted"
	EventError       EventType = "error"
	EventPause       EventType = "pause"
	EventResume      EventType = "resume"
)

// Event is delivered to the callback registered with an utterance.
type Event struct {
	Type EventType
	Err  error
}

// eventStatus maps engine events to the status they imply. Pause and resume
// are reported by some engines but the controller sets those states itself.
var eventStatus = map[EventType]Status{
	EventStart:       StatusPlaying,
	EventEnd:         StatusStopped,
	EventInterrupted: StatusStopped,
	EventError:       StatusStopped,
}

// StatusForEvent returns the status an engine event transitions to, and false
// when the event carries no transition.
func StatusForEvent(t EventType) (Status, bool) {
	s, ok := eventStatus[t]
	return s, ok
}

// Action is the command a context sends to the controller.
type Action string

const (
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
)

// StatusForAction is the status the controller sets after issuing the engine
// call for a transport command. Play has no entry: its status follows the
// engine's start event.
func StatusForAction(a Action) (Status, bool) {
	switch a {
	case ActionPause:
		return StatusPaused, true
	case ActionResume:
		return StatusPlaying, true
	case ActionStop:
		return StatusStopped, true
	default:
		return StatusIdle, false
	}
}
