package notifications

import (
	"errors"
	"time"
)

// JobKindCreate is the queue kind for notification-creation jobs.
const JobKindCreate = "notification.create"

// RoutingKind discriminates delivery targets. One job schema, three delivery
// strategies, made explicit rather than carried as sentinel keys inside the
// open metadata bag.
type RoutingKind string

const (
	RouteUser      RoutingKind = "user"
	RouteRole      RoutingKind = "role"
	RouteBroadcast RoutingKind = "broadcast"
)

// RoutingTarget is the tagged union consumed by the worker's routing switch.
type RoutingTarget struct {
	Kind   RoutingKind `json:"kind"`
	UserID string      `json:"user_id,omitempty"`
	Role   string      `json:"role,omitempty"`
}

// RouteToUser targets the owning recipient's live connections.
func RouteToUser(userID string) RoutingTarget {
	return RoutingTarget{Kind: RouteUser, UserID: userID}
}

// RouteToRole targets every connection in a role cohort.
func RouteToRole(role string) RoutingTarget {
	return RoutingTarget{Kind: RouteRole, Role: role}
}

// RouteToAll targets every open connection.
func RouteToAll() RoutingTarget {
	return RoutingTarget{Kind: RouteBroadcast}
}

// Validate checks the union's tag and its required payload.
func (t RoutingTarget) Validate() error {
	switch t.Kind {
	case RouteUser, "":
		if t.UserID == "" {
			return errors.New("routing: user target requires a user id")
		}
	case RouteRole:
		if t.Role == "" {
			return errors.New("routing: role target requires a role")
		}
	case RouteBroadcast:
	default:
		return errors.New("routing: unknown target kind " + string(t.Kind))
	}
	return nil
}

// jobPayload is the envelope stored on the queue for each notification to be
// created. It is a superset of the persistable notification fields plus the
// delivery target.
type jobPayload struct {
	Target RoutingTarget `json:"target"`

	UserID   string         `json:"user_id"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority int            `json:"priority,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	ActionURL  string         `json:"action_url,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`

	RelatedJobID         string `json:"related_job_id,omitempty"`
	RelatedApplicationID string `json:"related_application_id,omitempty"`
	RelatedUserID        string `json:"related_user_id,omitempty"`
}
