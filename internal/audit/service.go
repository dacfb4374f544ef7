package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for command events.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records every hangup and transfer attempt, accepted or rejected.
//
// Callers treat audit logging as best-effort: a failed append is logged by the
// caller and the command result is still returned to the operator.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountCode == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" || e.Channel == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogHangup records a hangup attempt and its outcome.
func (s *Service) LogHangup(ctx context.Context, accountCode, actorUserID, actorRole, channel string, cmdErr error) error {
	return s.Append(ctx, Event{
		AccountCode: accountCode,
		Type:        EventTypeHangup,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Channel:     channel,
		Outcome:     outcomeFor(cmdErr),
		Message:     messageFor(cmdErr),
	})
}

// LogTransfer records a blind transfer attempt and its outcome.
func (s *Service) LogTransfer(ctx context.Context, accountCode, actorUserID, actorRole, channel, destination string, cmdErr error) error {
	return s.Append(ctx, Event{
		AccountCode: accountCode,
		Type:        EventTypeTransfer,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Channel:     channel,
		Destination: destination,
		Outcome:     outcomeFor(cmdErr),
		Message:     messageFor(cmdErr),
	})
}

func outcomeFor(err error) Outcome {
	if err != nil {
		return OutcomeRejected
	}
	return OutcomeAccepted
}

func messageFor(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
