package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys used to store authentication metadata.
const (
	ContextKeyOrgID       = "org_id"
	ContextKeyMemberID    = "member_id"
	ContextKeyMemberEmail = "member_email"
	ContextKeyMemberRole  = "member_role"
	ContextKeyRequestID   = "request_id"
)

// OrgIDFromContext returns the authenticated organization.
func OrgIDFromContext(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ContextKeyOrgID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// MemberIDFromContext returns the authenticated member, or "".
func MemberIDFromContext(c echo.Context) string {
	if val, ok := c.Get(ContextKeyMemberID).(string); ok {
		return val
	}
	return ""
}
