// Package postgres implements recordsource.Source on a single PostgreSQL table.
//
// Every collection shares the records table: id, collection, data (jsonb),
// password_hash, created and updated. Filters and sorts are translated with
// goqu into prepared SQL; field names are validated as identifiers and values
// always travel as bind parameters. Auth collections keep a bcrypt hash in
// password_hash, never in data.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
	"github.com/muazhazali/lepakmasjid/internal/telemetry"
)

// DefaultRelations lists the relation fields that can be expanded, keyed by
// "collection.field".
var DefaultRelations = map[string]string{
	"mosque_amenities.amenity_id": recordsource.CollectionAmenities,
	"mosque_amenities.mosque_id":  recordsource.CollectionMosques,
	"activities.mosque_id":        recordsource.CollectionMosques,
	"mosques.created_by":          recordsource.CollectionUsers,
	"submissions.mosque_id":       recordsource.CollectionMosques,
	"submissions.submitted_by":    recordsource.CollectionUsers,
	"audit_logs.actor_id":         recordsource.CollectionUsers,
}

// authCollections hold accounts with passwords.
var authCollections = map[string]bool{recordsource.CollectionUsers: true}

const minPasswordLength = 8

// Store is a Postgres Record Source.
type Store struct {
	db        sqlx.ExtContext
	root      *sqlx.DB
	relations map[string]string
	logger    *slog.Logger
	now       func() time.Time
}

// New wraps an open connection pool.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:        db,
		root:      db,
		relations: DefaultRelations,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type recordRow struct {
	ID      string    `db:"id"`
	Data    []byte    `db:"data"`
	Created time.Time `db:"created"`
	Updated time.Time `db:"updated"`
}

type authRow struct {
	recordRow
	PasswordHash sql.NullString `db:"password_hash"`
}

func (r recordRow) document() (map[string]any, error) {
	doc := map[string]any{}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &doc); err != nil {
			return nil, fmt.Errorf("corrupt data for record %s: %w", r.ID, err)
		}
	}
	doc["id"] = r.ID
	doc["created"] = models.NewDateTime(r.Created).String()
	doc["updated"] = models.NewDateTime(r.Updated).String()
	return doc, nil
}

func observe(collection, op string, started time.Time, err error) {
	outcome := "ok"
	var se *recordsource.Error
	switch {
	case err == nil:
	case errors.As(err, &se) && se.Status < 500:
		outcome = "client_error"
	default:
		outcome = "server_error"
	}
	telemetry.ObserveRecordSource(collection, op, outcome, started)
}

// storeError converts a driver error into a *recordsource.Error.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var se *recordsource.Error
	if errors.As(err, &se) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return &recordsource.Error{Status: http.StatusBadRequest, Message: "value must be unique", Err: err}
		case "22P02", "22007", "22008":
			return &recordsource.Error{Status: http.StatusBadRequest, Message: "invalid value in filter", Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &recordsource.Error{Err: err}
	}
	return &recordsource.Error{Status: http.StatusInternalServerError, Message: "database error", Err: err}
}

// List implements recordsource.Source.
func (s *Store) List(ctx context.Context, collection string, page, perPage int, opts recordsource.ListOptions) (res *recordsource.ListResult, err error) {
	started := time.Now()
	defer func() { observe(collection, "list", started, err) }()

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > recordsource.MaxPerPage {
		return nil, badRequest("perPage must be between 1 and %d", recordsource.MaxPerPage)
	}

	countSQL, countArgs, err := buildCountQuery(collection, opts.Filter)
	if err != nil {
		return nil, storeError(err)
	}
	var total int
	if err := sqlx.GetContext(ctx, s.db, &total, countSQL, countArgs...); err != nil {
		return nil, storeError(err)
	}

	listSQL, listArgs, err := buildListQuery(collection, page, perPage, opts)
	if err != nil {
		return nil, storeError(err)
	}
	var rows []recordRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, listSQL, listArgs...); err != nil {
		return nil, storeError(err)
	}

	items, err := s.render(ctx, collection, rows, opts.Expand)
	if err != nil {
		return nil, err
	}
	return &recordsource.ListResult{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      items,
	}, nil
}

// GetOne implements recordsource.Source.
func (s *Store) GetOne(ctx context.Context, collection, id string, opts recordsource.GetOptions) (raw json.RawMessage, err error) {
	started := time.Now()
	defer func() { observe(collection, "get", started, err) }()

	rows, err := s.fetch(ctx, collection, []string{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, recordsource.ErrNotFound(collection, id)
	}
	items, err := s.render(ctx, collection, rows, opts.Expand)
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *Store) fetch(ctx context.Context, collection string, ids []string) ([]recordRow, error) {
	q, args, err := buildGetQuery(collection, ids)
	if err != nil {
		return nil, storeError(err)
	}
	var rows []recordRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, q, args...); err != nil {
		return nil, storeError(err)
	}
	return rows, nil
}

// render encodes rows as JSON records, inlining expanded relations.
func (s *Store) render(ctx context.Context, collection string, rows []recordRow, expand string) ([]json.RawMessage, error) {
	docs := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, storeError(err)
		}
		docs = append(docs, doc)
	}
	if expand != "" {
		if err := s.expand(ctx, collection, docs, expand); err != nil {
			return nil, err
		}
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, storeError(err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) expand(ctx context.Context, collection string, docs []map[string]any, expand string) error {
	for _, field := range strings.Split(expand, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		target, ok := s.relations[collection+"."+field]
		if !ok {
			return badRequest("cannot expand %q on %s", field, collection)
		}
		ids := make([]string, 0, len(docs))
		seen := map[string]bool{}
		for _, d := range docs {
			if id, _ := d[field].(string); id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		rows, err := s.fetch(ctx, target, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]map[string]any, len(rows))
		for _, r := range rows {
			doc, err := r.document()
			if err != nil {
				return storeError(err)
			}
			byID[r.ID] = doc
		}
		for _, d := range docs {
			id, _ := d[field].(string)
			rel, ok := byID[id]
			if !ok {
				continue
			}
			ex, _ := d["expand"].(map[string]any)
			if ex == nil {
				ex = map[string]any{}
				d["expand"] = ex
			}
			ex[field] = rel
		}
	}
	return nil
}

// Create implements recordsource.Source.
func (s *Store) Create(ctx context.Context, collection string, body map[string]any) (raw json.RawMessage, err error) {
	started := time.Now()
	defer func() { observe(collection, "create", started, err) }()

	data := clean(body)
	id, _ := body["id"].(string)
	if id == "" {
		id = models.NewRecordID()
	} else if !models.IsValidRecordID(id) {
		return nil, badRequest("invalid id")
	}

	var hash sql.NullString
	if authCollections[collection] {
		h, err := hashPassword(body)
		if err != nil {
			return nil, err
		}
		hash = sql.NullString{String: h, Valid: true}
		if err := s.ensureUniqueEmail(ctx, collection, data, ""); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, badRequest("body is not JSON encodable")
	}
	now := s.now()
	q, args, err := dialect.Insert(tableRecords).Prepared(true).
		Rows(goqu.Record{
			colID:           id,
			colCollection:   collection,
			colData:         string(b),
			colPasswordHash: hash,
			colCreated:      now,
			colUpdated:      now,
		}).
		Returning(colID, colData, colCreated, colUpdated).
		ToSQL()
	if err != nil {
		return nil, storeError(err)
	}
	var row recordRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		return nil, storeError(err)
	}
	items, err := s.render(ctx, collection, []recordRow{row}, "")
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Update implements recordsource.Source. Fields in body are merged into the
// stored document; "password" on an auth collection replaces the hash.
func (s *Store) Update(ctx context.Context, collection, id string, body map[string]any) (raw json.RawMessage, err error) {
	started := time.Now()
	defer func() { observe(collection, "update", started, err) }()

	data := clean(body)
	set := goqu.Record{colUpdated: s.now()}

	if authCollections[collection] {
		if _, ok := body["password"]; ok {
			h, err := hashPassword(body)
			if err != nil {
				return nil, err
			}
			set[colPasswordHash] = h
		}
		if err := s.ensureUniqueEmail(ctx, collection, data, id); err != nil {
			return nil, err
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, badRequest("body is not JSON encodable")
	}
	set[colData] = goqu.L("data || ?::jsonb", string(b))

	q, args, err := dialect.Update(tableRecords).Prepared(true).
		Set(set).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(id)).
		Returning(colID, colData, colCreated, colUpdated).
		ToSQL()
	if err != nil {
		return nil, storeError(err)
	}
	var row recordRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recordsource.ErrNotFound(collection, id)
		}
		return nil, storeError(err)
	}
	items, err := s.render(ctx, collection, []recordRow{row}, "")
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// Delete implements recordsource.Source.
func (s *Store) Delete(ctx context.Context, collection, id string) (err error) {
	started := time.Now()
	defer func() { observe(collection, "delete", started, err) }()

	q, args, err := dialect.Delete(tableRecords).Prepared(true).
		Where(goqu.C(colCollection).Eq(collection), goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return storeError(err)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return storeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(err)
	}
	if n == 0 {
		return recordsource.ErrNotFound(collection, id)
	}
	return nil
}

// AuthWithPassword implements recordsource.Source.
func (s *Store) AuthWithPassword(ctx context.Context, collection, identity, password string) (raw json.RawMessage, err error) {
	started := time.Now()
	defer func() { observe(collection, "auth", started, err) }()

	failed := recordsource.NewError(http.StatusBadRequest, "Failed to authenticate.")
	if !authCollections[collection] {
		return nil, failed
	}
	q, args, err := dialect.From(tableRecords).Prepared(true).
		Select(colID, colData, colCreated, colUpdated, colPasswordHash).
		Where(goqu.C(colCollection).Eq(collection), goqu.L("data->>'email'").Eq(identity)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, storeError(err)
	}
	var row authRow
	if err := sqlx.GetContext(ctx, s.db, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, failed
		}
		return nil, storeError(err)
	}
	if !row.PasswordHash.Valid || bcrypt.CompareHashAndPassword([]byte(row.PasswordHash.String), []byte(password)) != nil {
		return nil, failed
	}
	items, err := s.render(ctx, collection, []recordRow{row.recordRow}, "")
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// RequestPasswordReset implements recordsource.Source. The SQL store has no
// mailer, so the request is only logged; like PocketBase it never reveals
// whether the address exists.
func (s *Store) RequestPasswordReset(ctx context.Context, collection, email string) error {
	s.logger.InfoContext(ctx, "password reset requested", "collection", collection)
	return nil
}

// Ping implements recordsource.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.root.PingContext(ctx)
}

// RunInTx implements recordsource.Transactor.
func (s *Store) RunInTx(ctx context.Context, fn func(tx recordsource.Source) error) error {
	tx, err := s.root.BeginTxx(ctx, nil)
	if err != nil {
		return storeError(err)
	}
	txStore := *s
	txStore.db = tx
	if err := fn(&txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError(err)
	}
	return nil
}

func (s *Store) ensureUniqueEmail(ctx context.Context, collection string, data map[string]any, selfID string) error {
	email, _ := data["email"].(string)
	if email == "" {
		return nil
	}
	ds := dialect.From(tableRecords).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(colCollection).Eq(collection), goqu.L("lower(data->>'email')").Eq(goqu.L("lower(?)", email)))
	if selfID != "" {
		ds = ds.Where(goqu.C(colID).Neq(selfID))
	}
	q, args, err := ds.ToSQL()
	if err != nil {
		return storeError(err)
	}
	var n int
	if err := sqlx.GetContext(ctx, s.db, &n, q, args...); err != nil {
		return storeError(err)
	}
	if n > 0 {
		return &recordsource.Error{
			Status:  http.StatusBadRequest,
			Message: "Failed to create record.",
			Data:    map[string]any{"email": map[string]any{"code": "validation_not_unique", "message": "Value must be unique."}},
		}
	}
	return nil
}

// hashPassword validates password/passwordConfirm in body and returns a bcrypt hash.
func hashPassword(body map[string]any) (string, error) {
	pw, _ := body["password"].(string)
	if len(pw) < minPasswordLength {
		return "", badRequest("password must be at least %d characters", minPasswordLength)
	}
	if confirm, _ := body["passwordConfirm"].(string); confirm != pw {
		return "", badRequest("passwordConfirm does not match")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", storeError(err)
	}
	return string(h), nil
}

// clean drops fields that never belong in the stored document.
func clean(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		switch k {
		case "id", "created", "updated", "expand", "password", "passwordConfirm", "oldPassword":
			continue
		}
		out[k] = v
	}
	return out
}

var (
	_ recordsource.Source     = (*Store)(nil)
	_ recordsource.Transactor = (*Store)(nil)
	_ recordsource.Pinger     = (*Store)(nil)
)
