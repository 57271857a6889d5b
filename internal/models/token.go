package models

import "time"

type Token struct {
	TokenID        string     `json:"token_id"`
	DoctorID       string     `json:"doctor_id"`
	PatientID      string     `json:"patient_id"`
	TokenNumber    int        `json:"token_number"`
	QueueOrder     int64      `json:"queue_order"`
	Status         string     `json:"status"`
	MissedCount    int        `json:"missed_count"`
	CreatedAt      time.Time  `json:"created_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	ServedAt       *time.Time `json:"served_at,omitempty"`
	ServiceSeconds int        `json:"service_seconds,omitempty"`
	ServiceDay     time.Time  `json:"service_day"`
}

const (
	StatusWaiting = "waiting"
	StatusCalled  = "called"
	StatusServed  = "served"
)
