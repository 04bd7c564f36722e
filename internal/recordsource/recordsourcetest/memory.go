// Package recordsourcetest provides an in-memory recordsource.Source for tests.
//
// Records are plain JSON objects kept in insertion order per collection. Filters
// are evaluated against the stored documents, so tests exercise the same
// expressions the services send to a real store. Hook lets a test inject
// failures for specific calls.
package recordsourcetest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// Call records one operation performed against the Memory source.
type Call struct {
	Op         string
	Collection string
	ID         string
	Page       int
	PerPage    int
	Opts       recordsource.ListOptions
}

// Hook runs before every operation. A non-nil error is returned to the caller
// instead of performing the operation.
type Hook func(c Call) error

// Memory is a concurrency-safe in-memory record store.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	seq         int
	clock       time.Time

	// Relations maps "collection.field" to the collection that field points
	// at, for expand. mosque_amenities.amenity_id is preset.
	Relations map[string]string
	Hook      Hook
	Calls     []Call
}

// New returns an empty Memory source.
func New() *Memory {
	return &Memory{
		collections: map[string][]map[string]any{},
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Relations: map[string]string{
			"mosque_amenities.amenity_id": recordsource.CollectionAmenities,
			"mosque_amenities.mosque_id":  recordsource.CollectionMosques,
			"activities.mosque_id":        recordsource.CollectionMosques,
		},
	}
}

// ID returns a deterministic 15 character record id for n.
func ID(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, 15-len(prefix), n)
}

// Seed inserts a record as-is. Missing id and created fields are generated.
func (m *Memory) Seed(collection string, doc map[string]any) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(collection, doc)
}

// Records returns a copy of every record in collection.
func (m *Memory) Records(collection string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.collections[collection]))
	for _, d := range m.collections[collection] {
		out = append(out, clone(d))
	}
	return out
}

// CallsFor returns the recorded calls of one operation on one collection.
func (m *Memory) CallsFor(op, collection string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.Calls {
		if c.Op == op && c.Collection == collection {
			out = append(out, c)
		}
	}
	return out
}

func (m *Memory) before(c Call) error {
	m.Calls = append(m.Calls, c)
	if m.Hook != nil {
		return m.Hook(c)
	}
	return nil
}

func (m *Memory) insert(collection string, doc map[string]any) map[string]any {
	d := clone(doc)
	m.seq++
	if _, ok := d["id"]; !ok {
		d["id"] = ID("rec", m.seq)
	}
	now := m.clock.Add(time.Duration(m.seq) * time.Second).Format("2006-01-02 15:04:05.000Z")
	if _, ok := d["created"]; !ok {
		d["created"] = now
	}
	if _, ok := d["updated"]; !ok {
		d["updated"] = now
	}
	m.collections[collection] = append(m.collections[collection], d)
	return d
}

func (m *Memory) find(collection, id string) (int, map[string]any) {
	for i, d := range m.collections[collection] {
		if d["id"] == id {
			return i, d
		}
	}
	return -1, nil
}

func (m *Memory) List(_ context.Context, collection string, page, perPage int, opts recordsource.ListOptions) (*recordsource.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "list", Collection: collection, Page: page, PerPage: perPage, Opts: opts}); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > recordsource.MaxPerPage {
		return nil, recordsource.NewError(http.StatusBadRequest, "invalid perPage")
	}

	var matched []map[string]any
	for _, d := range m.collections[collection] {
		if Match(opts.Filter, d) {
			matched = append(matched, d)
		}
	}
	if opts.Sort != "" {
		sortDocs(matched, opts.Sort)
	}

	total := len(matched)
	start := (page - 1) * perPage
	end := min(start+perPage, total)
	res := &recordsource.ListResult{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      []json.RawMessage{},
	}
	for i := start; i < end; i++ {
		raw, err := m.encode(collection, matched[i], opts.Expand)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, raw)
	}
	return res, nil
}

func (m *Memory) GetOne(_ context.Context, collection, id string, opts recordsource.GetOptions) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "get", Collection: collection, ID: id}); err != nil {
		return nil, err
	}
	_, d := m.find(collection, id)
	if d == nil {
		return nil, recordsource.ErrNotFound(collection, id)
	}
	return m.encode(collection, d, opts.Expand)
}

func (m *Memory) Create(_ context.Context, collection string, body map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "create", Collection: collection}); err != nil {
		return nil, err
	}
	d := m.insert(collection, normalise(body))
	return m.encode(collection, d, "")
}

func (m *Memory) Update(_ context.Context, collection, id string, body map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "update", Collection: collection, ID: id}); err != nil {
		return nil, err
	}
	_, d := m.find(collection, id)
	if d == nil {
		return nil, recordsource.ErrNotFound(collection, id)
	}
	for k, v := range normalise(body) {
		if k == "id" {
			continue
		}
		d[k] = v
	}
	return m.encode(collection, d, "")
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "delete", Collection: collection, ID: id}); err != nil {
		return err
	}
	i, d := m.find(collection, id)
	if d == nil {
		return recordsource.ErrNotFound(collection, id)
	}
	docs := m.collections[collection]
	m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return nil
}

// AuthWithPassword matches identity against the email field and password
// against the plain "password" field of a seeded record.
func (m *Memory) AuthWithPassword(_ context.Context, collection, identity, password string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.before(Call{Op: "auth", Collection: collection, ID: identity}); err != nil {
		return nil, err
	}
	for _, d := range m.collections[collection] {
		if d["email"] == identity && d["password"] == password {
			return m.encode(collection, d, "")
		}
	}
	return nil, recordsource.NewError(http.StatusBadRequest, "Failed to authenticate.")
}

func (m *Memory) RequestPasswordReset(_ context.Context, collection, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.before(Call{Op: "password-reset", Collection: collection, ID: email})
}

// encode renders a stored document without credential fields, inlining
// expanded relations under "expand".
func (m *Memory) encode(collection string, d map[string]any, expand string) (json.RawMessage, error) {
	out := clone(d)
	delete(out, "password")
	delete(out, "passwordConfirm")
	if expand != "" {
		ex := map[string]any{}
		for _, field := range strings.Split(expand, ",") {
			field = strings.TrimSpace(field)
			target, ok := m.Relations[collection+"."+field]
			if !ok {
				return nil, recordsource.NewError(http.StatusBadRequest, "cannot expand "+field)
			}
			id, _ := d[field].(string)
			if id == "" {
				continue
			}
			if _, rel := m.find(target, id); rel != nil {
				ex[field] = clone(rel)
			}
		}
		if len(ex) > 0 {
			out["expand"] = ex
		}
	}
	return json.Marshal(out)
}

func clone(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// normalise round-trips body through JSON so stored values have the same
// types a real store would return (numbers become float64, structs become maps).
func normalise(body map[string]any) map[string]any {
	b, err := json.Marshal(body)
	if err != nil {
		return clone(body)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return clone(body)
	}
	return out
}

func sortDocs(docs []map[string]any, spec string) {
	fields := strings.Split(spec, ",")
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			f = strings.TrimSpace(f)
			desc := strings.HasPrefix(f, "-")
			f = strings.TrimPrefix(strings.TrimPrefix(f, "-"), "+")
			c := compare(docs[i][f], docs[j][f])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}
