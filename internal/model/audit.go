package model

import "time"

// Action identifies a mutating admin or system operation for the audit log.
type Action string

const (
	ActionPin           Action = "PIN"
	ActionUnpin         Action = "UNPIN"
	ActionEdit          Action = "EDIT"
	ActionDelete        Action = "DELETE"
	ActionSetRetention  Action = "SET_RETENTION"
	ActionForgetSubject Action = "FORGET_SUBJECT"
	ActionCreateGlobal  Action = "CREATE_GLOBAL"
)

// AuditEvent records one successful mutation. Events are append-only and
// written in the same logical operation as the mutation they describe.
type AuditEvent struct {
	ID              string         `json:"id"`
	Action          Action         `json:"action"`
	ActorID         string         `json:"actor_id,omitempty"` // empty for system-originated events
	TargetSubjectID string         `json:"target_subject_id,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
