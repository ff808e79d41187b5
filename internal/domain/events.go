package domain

// EventKind identifies one of the lifecycle events the controller emits to
// its consumer.
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventAssetFound    EventKind = "asset_found"
	EventAssetProgress EventKind = "asset_progress"
	EventAssetFinished EventKind = "asset_finished"
	EventRunComplete   EventKind = "run_complete"
	EventError         EventKind = "error"
)

// Event is one message on the controller's event channel. The channel is
// FIFO with a single consumer; fields are populated per kind.
type Event struct {
	Kind    EventKind
	Message string // StatusChanged, Error

	// Asset events
	AssetID string
	Title   string
	Status  string
	Percent int
	Path    string
	Record  *Record // AssetFound only

	// RunComplete
	Success bool
}

// StatusEvent builds a StatusChanged event.
func StatusEvent(msg string) Event {
	return Event{Kind: EventStatusChanged, Message: msg}
}

// ErrorEvent builds an Error event.
func ErrorEvent(msg string) Event {
	return Event{Kind: EventError, Message: msg}
}
