package models

import "time"

// Dossier is the clinical-record container of a patient ("dossier_medical").
type Dossier struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"id_utilisateur"`
	GroupeSanguin *string   `json:"groupe_sanguin"`
	DateCreation  time.Time `json:"date_creation"`
}

// Intake is the first follow-up record ("suivi_patient") written when a
// patient completes registration.
type Intake struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	Date            time.Time  `bson:"date" json:"date"`
	Poids           *float64   `bson:"poids" json:"poids"`
	Taille          *int       `bson:"taille" json:"taille"`
	DateGreffe      *time.Time `bson:"date_greffe" json:"date_greffe"`
	Allergies       *string    `bson:"allergies" json:"allergies"`
	MaladieRenale   *string    `bson:"maladie_renale" json:"maladie_renale"`
	DossierID       string     `bson:"id_dossier_medical" json:"id_dossier_medical"`
	SuiviTraitement bool       `bson:"suivi_traitement" json:"suivi_traitement"`
	Prescription    *string    `bson:"prescription" json:"prescription"`
}
