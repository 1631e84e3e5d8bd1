package ice

// EventKind enumerates the state-change notifications the agent emits
// through its pending event queue (?3's "pending event queue" field; ?5
// requires component-state events to be strictly monotonic).
type EventKind int

const (
	EventGatheringDone EventKind = iota
	EventComponentStateChanged
	EventSelectedPairChanged
)

// Event is one entry in the agent's outbound event queue, drained by the
// embedder after each Tick, DeliverDatagram or other verb call.
type Event struct {
	Kind        EventKind
	StreamID    int
	ComponentID int
	State       ComponentState
}

func (a *Agent) emit(e Event) {
	a.events = append(a.events, e)
}

// Events drains and returns the queued events.
func (a *Agent) Events() []Event {
	events := a.events
	a.events = nil
	return events
}

func (a *Agent) setComponentState(c *Component, s ComponentState) {
	if !c.setState(s) {
		return
	}
	log.Debug("stream %d component %d -> %s", c.StreamID, c.ID, s)
	a.emit(Event{Kind: EventComponentStateChanged, StreamID: c.StreamID, ComponentID: c.ID, State: s})
}
