package models

import (
	"strings"
	"time"
)

// Roles as stored on the account row.
const (
	RolePatient = "Patient"
	RoleMedecin = "Medecin"
	RoleAdmin   = "Admin"
)

// Account is a row of the "utilisateur" table/collection.
type Account struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Email           string    `bson:"email" json:"email"`
	Password        string    `bson:"mdp" json:"-"` // bcrypt hash, never serialized
	SecuriteSociale string    `bson:"securite_sociale" json:"securite_sociale"`
	MedecinID       *string   `bson:"id_utilisateur_medecin" json:"id_utilisateur_medecin"` // supervising provider, nil until assigned
	Role            string    `bson:"role" json:"role"`
	Prenom          string    `bson:"prenom" json:"prenom"`
	Nom             string    `bson:"nom" json:"nom"`
	DateNaissance   time.Time `bson:"date_naissance" json:"date_naissance"`
	Sexe            int       `bson:"sexe" json:"sexe"` // 0 = M, 1 = F
	Telephone       string    `bson:"telephone" json:"telephone"`
	AdressePostale  string    `bson:"adresse_postale" json:"adresse_postale"`
}

// CapitalizeRole turns "patient", "MEDECIN", ... into the stored form
// ("Patient", "Medecin"). Empty input stays empty.
func CapitalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + strings.ToLower(role[1:])
}

// RequestRole normalizes a request type to "patient" or "medecin".
// Anything that is not "medecin" is treated as a patient.
func RequestRole(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), "medecin") {
		return "medecin"
	}
	return "patient"
}

// CleanSecuriteSociale strips all whitespace from a national id.
func CleanSecuriteSociale(s string) string {
	return strings.Join(strings.Fields(s), "")
}
