// Package sessionstore keeps the state of in-progress interview calls,
// keyed by the voice platform's call id.
package sessionstore

import (
	"context"
	"time"

	"github.com/yoockh/voiceinterview/internal/models"
)

// Store is safe for concurrent use. Mutations of one call are serialized;
// different calls never block each other.
type Store interface {
	// GetOrCreate returns a snapshot of the call's session, creating a fresh
	// one in collecting_params when the call id is unseen.
	GetOrCreate(ctx context.Context, callID string) (*models.Session, error)

	// Update creates the session if needed, then runs fn on a private copy
	// while holding the call's lock. The copy replaces the stored session
	// only when fn returns nil. The committed snapshot is returned.
	Update(ctx context.Context, callID string, fn func(*models.Session) error) (*models.Session, error)

	// Get returns utils.ErrNotFound when the call has no live session.
	Get(ctx context.Context, callID string) (*models.Session, error)

	// ScheduleDelete lets the session expire once it has gone untouched for
	// after. Later GetOrCreate/Update calls renew the deadline. Unknown
	// call ids are ignored.
	ScheduleDelete(ctx context.Context, callID string, after time.Duration) error

	Close() error
}

func ttlFor(s *models.Session, idle time.Duration) time.Duration {
	if s.RetainFor > 0 {
		return s.RetainFor
	}
	return idle
}
