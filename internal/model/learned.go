package model

import "time"

// LearnedLocation is a coordinate a user confirmed for an address, reused on
// later batches instead of geocoding again.
type LearnedLocation struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	RawAddress string    `json:"rawAddress"`
	Bairro     string    `json:"bairro,omitempty"`
	Cidade     string    `json:"cidade,omitempty"`
	Estado     string    `json:"estado,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
