package recordsource

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// FirstListItem returns the first record matching filter, or a 404 *Error when
// there is none.
func FirstListItem(ctx context.Context, src Source, collection string, filter Expr) (json.RawMessage, error) {
	res, err := src.List(ctx, collection, 1, 1, ListOptions{Filter: filter})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, &Error{Status: http.StatusNotFound, Message: "no " + collection + " record matches the filter"}
	}
	return res.Items[0], nil
}

// ListWithSortFallback performs List and, when the store rejects a sorted
// request with a client error, repeats the identical request once without the
// sort. The second return value reports whether the sort was honoured.
func ListWithSortFallback(ctx context.Context, src Source, collection string, page, perPage int, opts ListOptions) (*ListResult, bool, error) {
	res, err := src.List(ctx, collection, page, perPage, opts)
	if err == nil {
		return res, opts.Sort != "", nil
	}
	if opts.Sort == "" || !IsClientError(err) {
		return nil, false, err
	}
	slog.Debug("record source rejected sort, retrying without it",
		"collection", collection, "sort", opts.Sort, "error", err)
	res, err = src.List(ctx, collection, page, perPage, opts.WithoutSort())
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

// ListAll walks every page of collection, perPage rows at a time, until the
// page counter reaches totalPages. A rejected sort on the first page falls back
// to unsorted for the whole walk. The second return value reports whether the
// sort was honoured.
func ListAll(ctx context.Context, src Source, collection string, perPage int, opts ListOptions) ([]json.RawMessage, bool, error) {
	first, sorted, err := ListWithSortFallback(ctx, src, collection, 1, perPage, opts)
	if err != nil {
		return nil, false, err
	}
	if !sorted {
		opts = opts.WithoutSort()
	}

	items := append([]json.RawMessage(nil), first.Items...)
	for page := 1; page < first.TotalPages; {
		page++
		res, err := src.List(ctx, collection, page, perPage, opts)
		if err != nil {
			return nil, false, err
		}
		if len(res.Items) == 0 {
			break
		}
		items = append(items, res.Items...)
	}
	return items, sorted, nil
}

// ListWindow collects the first limit records in store order, reading from
// page 1 in chunks of at most MaxPerPage rows, and stops early when the store
// is exhausted. The returned total is the store's totalItems for the filter.
func ListWindow(ctx context.Context, src Source, collection string, limit int, opts ListOptions) ([]json.RawMessage, int, bool, error) {
	chunk := min(limit, MaxPerPage)
	if chunk < 1 {
		chunk = 1
	}

	first, sorted, err := ListWithSortFallback(ctx, src, collection, 1, chunk, opts)
	if err != nil {
		return nil, 0, false, err
	}
	if !sorted {
		opts = opts.WithoutSort()
	}

	items := append([]json.RawMessage(nil), first.Items...)
	for page := 1; len(items) < limit && page < first.TotalPages; {
		page++
		res, err := src.List(ctx, collection, page, chunk, opts)
		if err != nil {
			return nil, 0, false, err
		}
		if len(res.Items) == 0 {
			break
		}
		items = append(items, res.Items...)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, first.TotalItems, sorted, nil
}
