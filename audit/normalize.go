package audit

import "time"

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Normalize turns a caller entry into the wire event.
// serviceName always wins; Timestamp defaults to now only when the caller left it empty.
// Nested values are passed through untouched.
func Normalize(entry Entry, serviceName string, now time.Time) Event {
	ts := entry.Timestamp
	if ts == "" {
		ts = now.UTC().Format(TimestampLayout)
	}

	return Event{
		Timestamp:    ts,
		WorkspaceID:  entry.WorkspaceID,
		ServiceName:  serviceName,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		ActorType:    entry.ActorType,
		ActorID:      entry.ActorID,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RequestID:    entry.RequestID,
		Before:       entry.Before,
		After:        entry.After,
		Metadata:     entry.Metadata,
	}
}
