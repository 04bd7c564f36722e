// Package recordsource defines the contract between the domain services and the
// external paginated record store that owns every collection (mosques,
// amenities, mosque_amenities, activities, submissions, users, audit_logs).
//
// Two adapters implement Source: pocketbase (HTTP) and postgres (SQL). Services
// only ever see raw JSON records; they decode them through models.Decode so a
// malformed record fails at the boundary with a typed error.
package recordsource

import (
	"context"
	"encoding/json"
)

// Collection names.
const (
	CollectionMosques         = "mosques"
	CollectionAmenities       = "amenities"
	CollectionMosqueAmenities = "mosque_amenities"
	CollectionActivities      = "activities"
	CollectionSubmissions     = "submissions"
	CollectionUsers           = "users"
	CollectionAuditLogs       = "audit_logs"
)

// MaxPerPage is the largest page a single List call may request.
const MaxPerPage = 500

// ListOptions narrows a List call. Sort is a comma separated field list where a
// leading "-" means descending. Expand names relation fields to inline.
type ListOptions struct {
	Filter Expr
	Sort   string
	Expand string
}

// WithoutSort returns a copy of o with no sort.
func (o ListOptions) WithoutSort() ListOptions {
	o.Sort = ""
	return o
}

// ListResult is one page of raw records.
type ListResult struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Items      []json.RawMessage `json:"items"`
}

// GetOptions narrows a GetOne call.
type GetOptions struct {
	Expand string
}

// Source is a paginated document store. Implementations return *Error for
// failures reported by the store and wrap transport failures in *Error with
// Status 0.
type Source interface {
	List(ctx context.Context, collection string, page, perPage int, opts ListOptions) (*ListResult, error)
	GetOne(ctx context.Context, collection, id string, opts GetOptions) (json.RawMessage, error)
	Create(ctx context.Context, collection string, body map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, collection, id string, body map[string]any) (json.RawMessage, error)
	Delete(ctx context.Context, collection, id string) error

	// AuthWithPassword verifies credentials against an auth collection and
	// returns the account record.
	AuthWithPassword(ctx context.Context, collection, identity, password string) (json.RawMessage, error)
	// RequestPasswordReset asks the store to start a password reset for email.
	RequestPasswordReset(ctx context.Context, collection, email string) error
}

// Transactor is implemented by sources that can run several mutations
// atomically. fn receives a Source bound to the transaction; returning an
// error rolls every mutation back.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx Source) error) error
}

// Pinger is implemented by sources that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
