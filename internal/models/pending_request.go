package models

import "time"

// PendingRequest is a signup awaiting an administrator decision.
type PendingRequest struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"` // "patient" or "medecin"
	Prenom    string    `json:"prenom"`
	Nom       string    `json:"nom"`
	Email     string    `json:"email"`
	Telephone string    `json:"telephone,omitempty"`
	Sujet     string    `json:"sujet,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
