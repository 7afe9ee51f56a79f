package model

import (
	"fmt"
	"time"
)

// User is the authenticated identity held by a session.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest password the signup form accepts.
const MinPasswordLength = 8

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Image is one file attached to a report.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Report is a new item report as collected by the report form.
type Report struct {
	Name        string
	Description string
	ItemType    string
	Location    string
	City        string
	Province    string
	Date        time.Time
	User        string
	Reward      float64
	ContactType string
	Contact     string
	Category    string
	Images      []Image
}
