package models

import "time"

// Session status values.
const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

// Slot status values.
const (
	SlotStatusFree     = "free"
	SlotStatusOccupied = "occupied"
)

// Session represents one vehicle's visit. A closed session keeps its exit
// time forever; sessions are never deleted.
type Session struct {
	ID            int64     `db:"id" json:"id"`
	VehicleNumber string    `db:"vehicle_number" json:"vehicle_number"`
	Status        string    `db:"status" json:"status"`
	EntryTime     time.Time `db:"entry_time" json:"entry_time"`
	ExitTime      time.Time `db:"exit_time" json:"exit_time,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Slot represents one physical parking space. Occupant is the vehicle
// number and is empty exactly when the slot is free.
type Slot struct {
	ID       int64  `db:"id" json:"id"`
	SlotCode string `db:"slot_code" json:"slot_code"`
	Status   string `db:"status" json:"status"`
	Occupant string `db:"occupant" json:"occupant,omitempty"`
}

// Invoice is the billing record for one closed session. IssuedAt carries
// the exit time of the billed visit and doubles as the dedup key together
// with the vehicle number.
type Invoice struct {
	ID            int64     `db:"id" json:"id"`
	VehicleNumber string    `db:"vehicle_number" json:"vehicle_number"`
	Amount        float64   `db:"amount" json:"amount"`
	IssuedAt      time.Time `db:"issued_at" json:"issued_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OutboxEntry is a pending event publication written in the same atomic
// unit as the session change that produced it.
type OutboxEntry struct {
	ID            int64     `db:"id" json:"id"`
	EventType     string    `db:"event_type" json:"event_type"`
	VehicleNumber string    `db:"vehicle_number" json:"vehicle_number"`
	Payload       []byte    `db:"payload" json:"payload"`
	Dispatched    bool      `db:"dispatched" json:"dispatched"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
