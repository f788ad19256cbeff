package motorcan

import "fmt"

type EventType int

func (et EventType) String() string {
	switch et {
	case EventTypeError:
		return "ERROR"
	case EventTypeWarning:
		return "WARN"
	case EventTypeInfo:
		return "INFO"
	case EventTypeDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

const (
	EventTypeError EventType = iota
	EventTypeWarning
	EventTypeInfo
	EventTypeDebug
)

// Event is a human readable notice from the session, meant for display.
type Event struct {
	Type    EventType
	Details string
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Details)
}

func (s *Session) sendEvent(eventType EventType, details string) {
	select {
	case s.evtChan <- Event{Type: eventType, Details: details}:
	default:
		// nobody is draining events, drop the oldest to keep the newest
		select {
		case <-s.evtChan:
		default:
		}
		select {
		case s.evtChan <- Event{Type: eventType, Details: details}:
		default:
		}
	}
}

// Send an error event
func (s *Session) Error(err error) {
	s.sendEvent(EventTypeError, err.Error())
}

// Send a warning event
func (s *Session) Warn(warn string) {
	s.sendEvent(EventTypeWarning, warn)
}

// Send an info event
func (s *Session) Info(info string) {
	s.sendEvent(EventTypeInfo, info)
}

// Send a debug event
func (s *Session) Debug(debug string) {
	s.sendEvent(EventTypeDebug, debug)
}
