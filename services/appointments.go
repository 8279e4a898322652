package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/carebook/cli/api"
)

const appointmentsEndpoint = "/appointments/"

// Appointments books and manages sessions with specialists.
type Appointments struct {
	client *api.Client
}

func NewAppointments(client *api.Client) *Appointments {
	return &Appointments{client: client}
}

func (a *Appointments) List(ctx context.Context) ([]Appointment, error) {
	data, err := a.client.Get(ctx, appointmentsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return api.Decode[[]Appointment](data)
}

func (a *Appointments) Get(ctx context.Context, id string) (*Appointment, error) {
	data, err := a.client.Get(ctx, appointmentPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment %s: %w", id, err)
	}
	return api.Decode[*Appointment](data)
}

// Create books a new appointment.
func (a *Appointments) Create(ctx context.Context, in AppointmentInput) (*Appointment, error) {
	if in.SpecialistID == "" {
		return nil, errors.New("specialist is required")
	}
	if in.StartsAt.IsZero() {
		return nil, errors.New("start time is required")
	}
	if !in.EndsAt.IsZero() && !in.EndsAt.After(in.StartsAt) {
		return nil, errors.New("end time must be after start time")
	}

	data, err := a.client.Post(ctx, appointmentsEndpoint, in)
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	return api.Decode[*Appointment](data)
}

// Update reschedules or changes the status of an appointment.
func (a *Appointments) Update(ctx context.Context, id string, in AppointmentUpdate) (*Appointment, error) {
	data, err := a.client.Patch(ctx, appointmentPath(id), in)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment %s: %w", id, err)
	}
	return api.Decode[*Appointment](data)
}

// Cancel deletes the appointment.
func (a *Appointments) Cancel(ctx context.Context, id string) error {
	if _, err := a.client.Delete(ctx, appointmentPath(id)); err != nil {
		return fmt.Errorf("failed to cancel appointment %s: %w", id, err)
	}
	return nil
}

// AssignedUsers lists the patients assigned to the signed-in care provider.
func (a *Appointments) AssignedUsers(ctx context.Context) ([]User, error) {
	data, err := a.client.Get(ctx, appointmentsEndpoint+"assigned-users")
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned users: %w", err)
	}
	return api.Decode[[]User](data)
}

func appointmentPath(id string) string {
	return appointmentsEndpoint + url.PathEscape(id)
}
