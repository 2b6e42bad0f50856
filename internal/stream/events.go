package stream

// EventType identifies one decoded unit of the generation protocol.
type EventType string

const (
	EventKeepalive EventType = "keepalive"
	EventStatus    EventType = "status"
	EventChat      EventType = "chat"
	EventFileChunk EventType = "file_chunk"
	EventSourceURL EventType = "source_url"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event carries exactly one protocol tag; the populated fields depend on Type.
type Event struct {
	Type EventType

	Message string // EventStatus
	Path    string // EventChat, EventFileChunk
	Content string // EventChat, EventFileChunk
	URL     string // EventSourceURL
	DocID   string // EventComplete
	Err     string // EventError
}

// Terminal reports whether the event ends the generation session.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
