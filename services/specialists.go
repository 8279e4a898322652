package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/carebook/cli/api"
)

// Specialists looks up care providers and their free slots.
type Specialists struct {
	client *api.Client
}

func NewSpecialists(client *api.Client) *Specialists {
	return &Specialists{client: client}
}

func (s *Specialists) Get(ctx context.Context, id string) (*Specialist, error) {
	data, err := s.client.Get(ctx, specialistPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load specialist %s: %w", id, err)
	}
	return api.Decode[*Specialist](data)
}

// Availability returns the slots of specialist id on the given day. A zero
// day asks the backend for its default window.
func (s *Specialists) Availability(ctx context.Context, id string, day time.Time) ([]Slot, error) {
	endpoint := specialistPath(id) + "/availability"
	if !day.IsZero() {
		endpoint += "?" + url.Values{"date": {day.Format(time.DateOnly)}}.Encode()
	}

	data, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability for %s: %w", id, err)
	}
	return api.Decode[[]Slot](data)
}

// CareProviders lists every bookable specialist.
func (s *Specialists) CareProviders(ctx context.Context) ([]Specialist, error) {
	data, err := s.client.Get(ctx, "/specialists/care-providers")
	if err != nil {
		return nil, fmt.Errorf("failed to list care providers: %w", err)
	}
	return api.Decode[[]Specialist](data)
}

func specialistPath(id string) string {
	return "/specialists/" + url.PathEscape(id)
}
