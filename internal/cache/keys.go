package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	RoleKeyPrefix        = "role:%s"
	DemoSessionKeyPrefix = "demo_session:%s"
)

const (
	RoleTTL = time.Minute
)

func RoleKey(userID string) string {
	return fmt.Sprintf(RoleKeyPrefix, userID)
}

func DemoSessionKey(token string) string {
	return fmt.Sprintf(DemoSessionKeyPrefix, token)
}

func InvalidateRole(ctx context.Context, userID string) {
	Invalidate(ctx, RoleKey(userID))
}
