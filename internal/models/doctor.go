package models

type Doctor struct {
	DoctorID  string `json:"doctor_id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type Patient struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	Age       int    `json:"age,omitempty"`
	Contact   string `json:"contact,omitempty"`
}
