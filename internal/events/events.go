// Package events defines the immutable domain events exchanged between the
// lifecycle manager and its consumers, plus the JSON codec used to park
// them in the outbox.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type tags as stored in the outbox.
const (
	TypeVehicleEntered = "vehicle.entered"
	TypeVehicleExited  = "vehicle.exited"
)

// Event is a published fact about one vehicle.
type Event interface {
	Type() string
	Vehicle() string
}

// VehicleEntered is published when an entry is recorded.
type VehicleEntered struct {
	VehicleNumber string    `json:"vehicle_number"`
	EntryTime     time.Time `json:"entry_time"`
}

// Type implements Event.
func (VehicleEntered) Type() string { return TypeVehicleEntered }

// Vehicle implements Event.
func (e VehicleEntered) Vehicle() string { return e.VehicleNumber }

// VehicleExited is published when an exit is recorded. It carries the entry
// time so billing never has to read session state.
type VehicleExited struct {
	VehicleNumber string    `json:"vehicle_number"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
}

// Type implements Event.
func (VehicleExited) Type() string { return TypeVehicleExited }

// Vehicle implements Event.
func (e VehicleExited) Vehicle() string { return e.VehicleNumber }

// Encode serializes an event payload for the outbox.
func Encode(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

// Decode reverses Encode using the stored type tag.
func Decode(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case TypeVehicleEntered:
		var evt VehicleEntered
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeVehicleExited:
		var evt VehicleExited
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("events: unknown event type %q", eventType)
	}
}
