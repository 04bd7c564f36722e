package models

import "encoding/json"

// Audit actions and entity types.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionReject  = "reject"

	EntityMosque     = "mosque"
	EntitySubmission = "submission"
	EntityUser       = "user"
)

// AuditLog is an append-only record of one mutation.
type AuditLog struct {
	ID         string          `json:"id" validate:"required"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	Timestamp  DateTime        `json:"timestamp"`
	IPAddress  string          `json:"ip_address"`
	UserAgent  string          `json:"user_agent"`
	Created    DateTime        `json:"created"`
}

// AuditFilter narrows audit log queries. Zero values are ignored.
type AuditFilter struct {
	Action     string `form:"action"`
	EntityType string `form:"entityType"`
	ActorID    string `form:"actorId"`
	StartDate  string `form:"startDate"`
	EndDate    string `form:"endDate"`
}
