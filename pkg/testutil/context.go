package testutil

import (
	"net/http"

	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the userID is not a valid UUID, it will not be added to the context.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsedUserID))
	}
	return req
}

// WithActor adds both user ID and role to the request context.
// This is the typical state for an authenticated request.
// Invalid values are silently ignored.
func WithActor(req *http.Request, userID string, role id.Role) *http.Request {
	ctx := req.Context()
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsedUserID)
	}
	if role.IsValid() {
		ctx = requestcontext.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}
