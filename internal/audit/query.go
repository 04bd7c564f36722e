package audit

import (
	"context"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Page is one page of audit entries, newest first.
type Page struct {
	Items      []models.AuditLog `json:"items"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

// Query reads the audit_logs collection for the admin views.
type Query struct {
	src recordsource.Source
}

func NewQuery(src recordsource.Source) *Query {
	return &Query{src: src}
}

func filterExpr(f models.AuditFilter) (recordsource.Expr, error) {
	exprs := []recordsource.Expr{}
	if f.Action != "" {
		exprs = append(exprs, recordsource.Eq("action", f.Action))
	}
	if f.EntityType != "" {
		exprs = append(exprs, recordsource.Eq("entity_type", f.EntityType))
	}
	if f.ActorID != "" {
		if !models.IsValidRecordID(f.ActorID) {
			return nil, apperrors.InvalidParameter("Invalid actorId format")
		}
		exprs = append(exprs, recordsource.Eq("actor_id", f.ActorID))
	}
	if f.StartDate != "" {
		start, err := models.ParseDateTime(f.StartDate)
		if err != nil {
			return nil, apperrors.InvalidParameter("Invalid startDate")
		}
		exprs = append(exprs, recordsource.Gte("timestamp", start.String()))
	}
	if f.EndDate != "" {
		end, err := models.ParseDateTime(f.EndDate)
		if err != nil {
			return nil, apperrors.InvalidParameter("Invalid endDate")
		}
		exprs = append(exprs, recordsource.Lte("timestamp", end.String()))
	}
	return recordsource.AllOf(exprs...), nil
}

// List returns one page of entries matching f.
func (q *Query) List(ctx context.Context, f models.AuditFilter, page, perPage int) (*Page, error) {
	filter, err := filterExpr(f)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	res, _, err := recordsource.ListWithSortFallback(ctx, q.src, recordsource.CollectionAuditLogs, page, perPage,
		recordsource.ListOptions{Filter: filter, Sort: "-timestamp"})
	if err != nil {
		return nil, apperrors.FetchFailed(err)
	}
	items, err := models.DecodeAll[models.AuditLog](recordsource.CollectionAuditLogs, res.Items)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}
	return &Page{
		Items:      items,
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
	}, nil
}

func (q *Query) Get(ctx context.Context, id string) (*models.AuditLog, error) {
	if !models.IsValidRecordID(id) {
		return nil, apperrors.InvalidParameter("Invalid audit log ID format")
	}
	raw, err := q.src.GetOne(ctx, recordsource.CollectionAuditLogs, id, recordsource.GetOptions{})
	if err != nil {
		return nil, apperrors.SanitizeNotFound(err, "Audit log not found")
	}
	entry, err := models.Decode[models.AuditLog](recordsource.CollectionAuditLogs, raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrFetchFailed, "Received an invalid response from the data service.", err)
	}
	return &entry, nil
}
