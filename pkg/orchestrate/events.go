package orchestrate

import "time"

type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventPlanGenerated EventType = "plan_generated"
	EventStepStarted   EventType = "step_started"
	EventStepFinished  EventType = "step_finished"
	EventRunFinished   EventType = "run_finished"
)

// Event describes progress of one orchestration run.
type Event struct {
	Type   EventType `json:"type"`
	RunID  string    `json:"run_id"`
	RoomID string    `json:"room_id,omitempty"`
	Index  int       `json:"index"`
	Action string    `json:"action,omitempty"`
	Status Status    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
	Steps  []Step    `json:"steps,omitempty"`
	Time   time.Time `json:"time"`
}

// Observer receives run events synchronously on the orchestrating goroutine.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
