// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
)

// RecordLoader fetches the invoice and expense snapshot for one user,
// already scoped to the report window.
type RecordLoader interface {
	LoadRecords(ctx context.Context, userID string, window domain.Window) (*domain.Snapshot, error)
}

// HealthChecker is implemented by backends that can report reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// UserResolver asks the identity provider which user owns an access token.
type UserResolver interface {
	GetUserID(ctx context.Context, accessToken string) (string, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
