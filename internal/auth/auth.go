package auth

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/examgate/config"
	"github.com/tdhoang/examgate/internal/service"
)

// AuthorityChecker decides whether a user may manage exams and see
// correctness data. The attempt core only ever consumes the boolean.
type AuthorityChecker interface {
	IsAuthority(userID uint) bool
}

type configAuthorityChecker struct {
	admins map[uint]struct{}
}

// NewAuthorityChecker grants authority to the user ids listed in config.
func NewAuthorityChecker(cfg *config.Config) AuthorityChecker {
	admins := make(map[uint]struct{}, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = struct{}{}
	}
	return &configAuthorityChecker{admins: admins}
}

func (c *configAuthorityChecker) IsAuthority(userID uint) bool {
	_, ok := c.admins[userID]
	return ok
}

// CallerFromContext resolves the requesting user from the X-User-ID header
// (or user_id query parameter) and annotates it with the authority flag.
// ok=false means the request is unauthenticated.
func CallerFromContext(ctx *gin.Context, checker AuthorityChecker) (service.Caller, bool) {
	raw := ctx.GetHeader("X-User-ID")
	if raw == "" {
		raw = ctx.Query("user_id")
	}
	if raw == "" {
		return service.Caller{}, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return service.Caller{}, false
	}
	userID := uint(id)
	return service.Caller{UserID: userID, IsAuthority: checker.IsAuthority(userID)}, true
}
