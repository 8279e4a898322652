package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/carebook/cli/api"
)

const journalsEndpoint = "/journals/"

// Journals manages the user's journal entries.
type Journals struct {
	client *api.Client
}

func NewJournals(client *api.Client) *Journals {
	return &Journals{client: client}
}

// List returns all entries of the signed-in user, newest first as ordered
// by the backend.
func (j *Journals) List(ctx context.Context) ([]Journal, error) {
	data, err := j.client.Get(ctx, journalsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	return api.Decode[[]Journal](data)
}

func (j *Journals) Get(ctx context.Context, id string) (*Journal, error) {
	data, err := j.client.Get(ctx, journalPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load journal %s: %w", id, err)
	}
	return api.Decode[*Journal](data)
}

func (j *Journals) Create(ctx context.Context, in JournalInput) (*Journal, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("journal title is required")
	}
	data, err := j.client.Post(ctx, journalsEndpoint, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	return api.Decode[*Journal](data)
}

func (j *Journals) Update(ctx context.Context, id string, in JournalInput) (*Journal, error) {
	data, err := j.client.Put(ctx, journalPath(id), in)
	if err != nil {
		return nil, fmt.Errorf("failed to update journal %s: %w", id, err)
	}
	return api.Decode[*Journal](data)
}

func (j *Journals) Delete(ctx context.Context, id string) error {
	if _, err := j.client.Delete(ctx, journalPath(id)); err != nil {
		return fmt.Errorf("failed to delete journal %s: %w", id, err)
	}
	return nil
}

func journalPath(id string) string {
	return journalsEndpoint + url.PathEscape(id)
}
