package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// ActorType classifies who performed the action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Event is the record sent to the collector.
type Event struct {
	Timestamp    string         `json:"timestamp"`             // ISO-8601, filled by the logger if absent
	WorkspaceID  string         `json:"workspaceId,omitempty"` // Tenant scope
	ServiceName  string         `json:"serviceName"`           // Always the logger's own service
	Action       string         `json:"action"`                // CREATE, UPDATE, DELETE, LOGIN...
	ResourceType string         `json:"resourceType"`          // user, invoice, schedule...
	ResourceID   string         `json:"resourceId,omitempty"`
	ActorType    ActorType      `json:"actorType,omitempty"`
	ActorID      *ActorID       `json:"actorId,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Before       any            `json:"before,omitempty"`
	After        any            `json:"after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON keeps an empty but non-nil Metadata map as {}.
// A nil map is still left out.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Metadata *map[string]any `json:"metadata,omitempty"`
	}{plain: plain(e)}
	if e.Metadata != nil {
		out.Metadata = &e.Metadata
	}
	return json.Marshal(out)
}

// Entry is what callers hand to Log. It has no ServiceName: the logger owns it.
type Entry struct {
	Timestamp    string
	WorkspaceID  string
	Action       string
	ResourceType string
	ResourceID   string
	ActorType    ActorType
	ActorID      *ActorID
	IP           string
	UserAgent    string
	RequestID    string
	Before       any
	After        any
	Metadata     map[string]any
}

// Logger is implemented by Client and NopLogger.
// Log never returns an error and never panics.
type Logger interface {
	Log(ctx context.Context, entry Entry)
}

// NopLogger discards every entry. Used when auditing is disabled and in tests.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Entry) {}

// ActorID holds either a string or an integer identifier and keeps that shape on the wire.
type ActorID struct {
	str   string
	num   int64
	isNum bool
}

func StringActorID(id string) *ActorID { return &ActorID{str: id} }

func IntActorID(id int64) *ActorID { return &ActorID{num: id, isNum: true} }

// IsInt reports whether the id is numeric.
func (a ActorID) IsInt() bool { return a.isNum }

func (a ActorID) String() string {
	if a.isNum {
		return strconv.FormatInt(a.num, 10)
	}
	return a.str
}

func (a ActorID) MarshalJSON() ([]byte, error) {
	if a.isNum {
		return []byte(strconv.FormatInt(a.num, 10)), nil
	}
	return json.Marshal(a.str)
}

func (a *ActorID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ActorID{str: s}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("audit: actorId must be a string or an integer: %w", err)
	}
	*a = ActorID{num: n, isNum: true}
	return nil
}
