// Package pager turns a result set into a paged, ownable, expiring
// browsing session. Expiry is computed from the stored creation timestamp
// on every operation; there is no background timer.
package pager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-tw/roadwatch/models"
)

// ErrNoRecords is returned by PickRandom on an empty result set.
var ErrNoRecords = errors.New("no records to pick from")

// StateExpiredError rejects one navigation action on a session whose TTL
// has elapsed. Racing an expiry check is a normal outcome, not a fault.
type StateExpiredError struct {
	ExpiredAt time.Time
}

func (e *StateExpiredError) Error() string {
	return fmt.Sprintf("page session expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

// NotOwnerError rejects a navigation action invoked by an actor other
// than the session owner.
type NotOwnerError struct {
	OwnerID string
	ActorID string
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("session owned by %s, not %s", e.OwnerID, e.ActorID)
}

// RunFunc re-executes the session's original query. Refresh takes it as
// an argument so this package stays independent of the aggregator.
type RunFunc func(ctx context.Context, q models.Query) ([]models.Record, error)

// PageState is the per-query mutable object tracking pagination position,
// owner and expiry. Mutation happens only inside navigation calls
// serialized by the caller's session; concurrent reads are safe.
type PageState struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Query     models.Query    `json:"query"`
	Records   []models.Record `json:"records"`
	PageSize  int             `json:"page_size"`
	Index     int             `json:"index"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

// New creates a page session owned by ownerID over an already filtered,
// deduplicated and ordered record sequence.
func New(ownerID string, q models.Query, records []models.Record, pageSize int, ttl time.Duration) *PageState {
	return &PageState{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Query:     q,
		Records:   records,
		PageSize:  pageSize,
		Index:     0,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
}

// ExpiresAt returns the instant the session expires.
func (s *PageState) ExpiresAt() time.Time { return s.CreatedAt.Add(s.TTL) }

// TotalPages returns the page count for the current record set.
func (s *PageState) TotalPages() int {
	if len(s.Records) == 0 || s.PageSize <= 0 {
		return 0
	}
	return (len(s.Records) + s.PageSize - 1) / s.PageSize
}

// guard rejects any operation by a non-owner or on an expired session.
func (s *PageState) guard(actorID string) error {
	if actorID != s.OwnerID {
		return &NotOwnerError{OwnerID: s.OwnerID, ActorID: actorID}
	}
	if time.Now().After(s.ExpiresAt()) {
		return &StateExpiredError{ExpiredAt: s.ExpiresAt()}
	}
	return nil
}

// Page returns the records of the current page with pagination metadata.
func (s *PageState) Page(actorID string) ([]models.Record, models.PageMeta, error) {
	if err := s.guard(actorID); err != nil {
		return nil, models.PageMeta{}, err
	}
	return s.page(), s.meta(), nil
}

// NextPage advances one page, clamping at the last page. Hitting the
// boundary is a no-op, not an error.
func (s *PageState) NextPage(actorID string) ([]models.Record, models.PageMeta, error) {
	if err := s.guard(actorID); err != nil {
		return nil, models.PageMeta{}, err
	}
	if s.Index < s.TotalPages()-1 {
		s.Index++
	}
	return s.page(), s.meta(), nil
}

// PrevPage goes back one page, clamping at page zero.
func (s *PageState) PrevPage(actorID string) ([]models.Record, models.PageMeta, error) {
	if err := s.guard(actorID); err != nil {
		return nil, models.PageMeta{}, err
	}
	if s.Index > 0 {
		s.Index--
	}
	return s.page(), s.meta(), nil
}

// PickRandom uniformly selects one record for a single-card view.
func (s *PageState) PickRandom(actorID string) (models.Record, error) {
	if err := s.guard(actorID); err != nil {
		return models.Record{}, err
	}
	if len(s.Records) == 0 {
		return models.Record{}, ErrNoRecords
	}
	return s.Records[rand.Intn(len(s.Records))], nil
}

// Refresh re-runs the session's original query and resets to page zero.
// Owner and TTL are preserved.
func (s *PageState) Refresh(ctx context.Context, actorID string, run RunFunc) error {
	if err := s.guard(actorID); err != nil {
		return err
	}
	records, err := run(ctx, s.Query)
	if err != nil {
		return err
	}
	s.Records = records
	s.Index = 0
	return nil
}

func (s *PageState) page() []models.Record {
	start := s.Index * s.PageSize
	if start >= len(s.Records) {
		return nil
	}
	end := start + s.PageSize
	if end > len(s.Records) {
		end = len(s.Records)
	}
	return s.Records[start:end]
}

func (s *PageState) meta() models.PageMeta {
	return models.PageMeta{
		CurrentPage:  s.Index,
		TotalPages:   s.TotalPages(),
		TotalResults: len(s.Records),
		OwnerID:      s.OwnerID,
		ExpiresAt:    s.ExpiresAt(),
	}
}
