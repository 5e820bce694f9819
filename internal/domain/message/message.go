package message

import "readaloud/internal/domain/playback"

// Action names carried on the wire.
const (
	ActionPlay         = string(playback.ActionPlay)
	ActionPause        = string(playback.ActionPause)
	ActionResume       = string(playback.ActionResume)
	ActionStop         = string(playback.ActionStop)
	ActionStatusUpdate = "statusUpdate"
	ActionMenuClicked  = "menuClicked"
	ActionGetSelection = "getSelection"
	ActionGetStatus    = "getStatus"

	// ActionActivate is sent by a bridged tab when it gains focus.
	ActionActivate = "activate"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message is the single envelope every context exchanges.
type Message struct {
	Action     string `json:"action"`
	Text       string `json:"text,omitempty"`
	Status     string `json:"status,omitempty"`
	MenuItemID string `json:"menuItemId,omitempty"`
}

// Response acknowledges a Message. Text is only set by selection and status queries.
type Response struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Play(text string) Message { return Message{Action: ActionPlay, Text: text} }
func Pause() Message           { return Message{Action: ActionPause} }
func Resume() Message          { return Message{Action: ActionResume} }
func Stop() Message            { return Message{Action: ActionStop} }

// StatusUpdate is the broadcast the controller sends after every transition.
func StatusUpdate(s playback.Status) Message {
	return Message{Action: ActionStatusUpdate, Status: s.String()}
}

// MenuClicked carries a context-menu activation and the selection it was opened on.
func MenuClicked(id, selection string) Message {
	return Message{Action: ActionMenuClicked, MenuItemID: id, Text: selection}
}

func Success() Response { return Response{Status: StatusSuccess} }

func Failure(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// Command converts a command action to its playback form.
func (m Message) Command() (playback.Action, bool) {
	switch m.Action {
	case ActionPlay, ActionPause, ActionResume, ActionStop:
		return playback.Action(m.Action), true
	default:
		return "", false
	}
}
