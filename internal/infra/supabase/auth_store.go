package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/invoicer-reports-go/internal/domain"
	"github.com/boddenberg/invoicer-reports-go/internal/infra/resilience"
)

// supabaseUser is the part of GET /auth/v1/user we need.
type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// GetUserID asks Supabase Auth which user owns accessToken
// (implements port.UserResolver).
func (c *Client) GetUserID(ctx context.Context, accessToken string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	var (
		user     supabaseUser
		rejected bool
	)
	err := c.execute(ctx, "supabase/auth", func() error {
		body, err := c.do(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", accessToken)
		if err != nil {
			// A rejected token is a healthy answer; keep it out of the breaker.
			var sErr *statusError
			if errors.As(err, &sErr) && (sErr.Status == http.StatusUnauthorized || sErr.Status == http.StatusForbidden) {
				rejected = true
				return nil
			}
			return err
		}
		if err := json.Unmarshal(body, &user); err != nil {
			return resilience.Permanent(fmt.Errorf("decode user: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if rejected || user.ID == "" {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	return user.ID, nil
}
