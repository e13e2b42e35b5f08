package deadletter

import (
	"context"

	"vektor/apps/embedder/internal/config"
)

// Service exposes operator actions over the durable dead-letter records.
type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

func (s *Service) List(ctx context.Context, limit int) ([]Message, error) {
	return s.repo.List(ctx, limit)
}

// Requeue republishes the original message onto the request topic and marks
// the record so it no longer shows up in the operator listing.
func (s *Service) Requeue(ctx context.Context, dlqID string) error {
	msg, err := s.repo.Get(ctx, dlqID)
	if err != nil {
		return err
	}

	if err := s.pub.Publish(config.TopicEmbedRequest, msg.OriginalMessage); err != nil {
		return err
	}

	return s.repo.MarkRequeued(ctx, dlqID)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
