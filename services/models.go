package services

import "time"

// User is a patient or care provider account.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        string    `json:"role,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Country     string    `json:"country,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// FullName joins first and last name, falling back to the email.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// UserUpdate carries the profile fields a user may change. Nil fields are
// left untouched.
type UserUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Country     *string `json:"country,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

// Journal is a mood/health journal entry.
type Journal struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// JournalInput is the body for creating or replacing a journal entry.
type JournalInput struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Mood      string   `json:"mood,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// Appointment statuses.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment is a booked session between a user and a specialist.
type Appointment struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SpecialistID string    `json:"specialist_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at,omitzero"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	MeetingLink  string    `json:"meeting_link,omitempty"`
}

// AppointmentInput is the body for booking an appointment.
type AppointmentInput struct {
	SpecialistID string    `json:"specialist_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at,omitzero"`
	Reason       string    `json:"reason,omitempty"`
}

// AppointmentUpdate changes an existing appointment. Nil fields are left
// untouched.
type AppointmentUpdate struct {
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Status   *string    `json:"status,omitempty"`
	Reason   *string    `json:"reason,omitempty"`
}

// Specialist is a care provider that can be booked.
type Specialist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Specialty string   `json:"specialty"`
	Bio       string   `json:"bio,omitempty"`
	Languages []string `json:"languages,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`
}

// Slot is a bookable time window.
type Slot struct {
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Available bool      `json:"available"`
}

// Media is an uploaded file.
type Media struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}
