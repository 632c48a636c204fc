package backend

import (
	"context"
	"strings"

	"github.com/serenissima/contracts-gateway/internal/apperror"
	"github.com/serenissima/contracts-gateway/internal/model"
)

// TryCreateActivity submits an asynchronous action to the simulation. Success means the
// request was accepted, not that the action has completed.
func (c *Client) TryCreateActivity(ctx context.Context, req model.ActivityRequest) (*model.ActivityResult, error) {
	if strings.TrimSpace(req.CitizenUsername) == "" {
		return nil, apperror.NewValidationError("citizenUsername", "is required")
	}
	if strings.TrimSpace(req.ActivityType) == "" {
		return nil, apperror.NewValidationError("activityType", "is required")
	}
	var resp model.ActivityResult
	if err := c.post(ctx, "/api/activities/try-create", req, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
