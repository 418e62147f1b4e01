package collector

import (
	"errors"
	"testing"
)

func TestEventString(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{
			name:  "error event",
			event: &Event{Type: ErrorEvent, Err: errors.New("kernel channel: queue 1000: closed")},
			want:  "Ekernel channel: queue 1000: closed",
		},
		{
			name:  "error event without error",
			event: &Event{Type: ErrorEvent},
			want:  "E",
		},
		{
			name:  "drop event",
			event: &Event{Type: DropEvent, Count: 12},
			want:  "D12",
		},
		{
			name:  "unknown event",
			event: &Event{Type: EventType(9)},
			want:  "?9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.String(); got != tt.want {
				t.Errorf("Event.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultCollector(t *testing.T) {

	c := NewDefaultCollector()
	c.CollectErrorEvent("input", 1000, errors.New("ignored"))
	c.CollectDropEvent("output", 1002, SourceUserspace, 3)
}
