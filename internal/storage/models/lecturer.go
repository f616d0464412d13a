package models

// Lecturer is a read-only entry of the staff directory.
type Lecturer struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Active   bool   `json:"active"`
}

// LecturerAvailability annotates a directory entry for a given release range.
type LecturerAvailability struct {
	Lecturer
	IsEligibleReplacement bool   `json:"isEligibleReplacement"`
	Reason                string `json:"reason,omitempty"`
}
