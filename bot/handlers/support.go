package handlers

import (
	"context"

	"herald/bot/directory"
)

// supportChecker authorizes operators by membership in the configured
// support group.
type supportChecker struct {
	dir   *directory.Service
	group string
}

func (s *supportChecker) IsSupport(ctx context.Context, userID int64) (bool, error) {
	return s.dir.IsMember(ctx, s.group, userID)
}
