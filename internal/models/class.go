package models

// ClassDetails is the directory view of a class.
type ClassDetails struct {
	ID                string  `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	EstablishmentID   *string `db:"establishment_id" json:"establishmentId,omitempty"`
	EstablishmentName *string `db:"establishment_name" json:"establishmentName,omitempty"`
}

// Course is the catalog entry a scheduled course refers to.
type Course struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}
