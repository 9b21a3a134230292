// audit/service.go
package audit

import (
	"context"
	"time"
)

type Service interface {
	LogAction(ctx context.Context, entry Entry) error
	QueryEntries(ctx context.Context, from, to time.Time, consumer, target string) ([]Entry, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogAction(ctx context.Context, entry Entry) error {
	return s.repo.LogAction(ctx, entry)
}

func (s *service) QueryEntries(ctx context.Context, from, to time.Time, consumer, target string) ([]Entry, error) {
	return s.repo.QueryEntries(ctx, from, to, consumer, target)
}
