package analyze

// EventType tags one unit of the streamed analysis protocol.
type EventType string

const (
	EventStatus        EventType = "status"
	EventCode          EventType = "code"
	EventOutput        EventType = "output"
	EventChart         EventType = "chart"
	EventExplanation   EventType = "explanation"
	EventError         EventType = "error"
	EventSearchResults EventType = "search_results"
	EventComplete      EventType = "analysis_complete"
)

// Event is one newline-delimited JSON object on the analysis stream. Status
// events carry Message, content events carry Content, and the stream ends at
// the first event with Done set.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
	Done    bool      `json:"done"`
}

func statusEvent(msg string) Event {
	return Event{Type: EventStatus, Message: msg}
}

func contentEvent(t EventType, content string) Event {
	return Event{Type: t, Content: content}
}

func terminalError(content string) Event {
	return Event{Type: EventError, Content: content, Done: true}
}

func completeEvent() Event {
	return Event{Type: EventComplete, Done: true}
}
