package domain

import "time"

// ActorKind names who caused a change.
type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorAdmin  ActorKind = "admin"
	ActorMember ActorKind = "member"
)

// Actor is the acting party recorded on audit rows.
type Actor struct {
	ID   string    `json:"id"`
	Kind ActorKind `json:"kind"`
}

// SystemActor is used by background jobs.
var SystemActor = Actor{ID: "system", Kind: ActorSystem}

// AnonymousActor is recorded for API calls that arrive without caller headers.
var AnonymousActor = Actor{ID: "anonymous", Kind: ActorMember}

// AuditLog is one attempted state transition. Rows are append only.
type AuditLog struct {
	AuditLogID  string    `json:"auditLogID"`
	SubjectType string    `json:"subjectType"`
	SubjectID   string    `json:"subjectID"`
	Event       string    `json:"event"`
	FromState   string    `json:"fromState"`
	ToState     string    `json:"toState"`
	Succeeded   bool      `json:"succeeded"`
	Reason      string    `json:"reason"`
	ActorID     string    `json:"actorID"`
	ActorKind   ActorKind `json:"actorKind"`
	At          time.Time `json:"at"`
}
