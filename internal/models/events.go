package models

import "time"

// TripEvent is the lifecycle record published to the event feed.
type TripEvent struct {
	Type     string    `json:"type"` // trip_requested, trip_accepted, ...
	TripID   string    `json:"trip_id"`
	RiderID  string    `json:"rider_id,omitempty"`
	DriverID string    `json:"driver_id,omitempty"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}
