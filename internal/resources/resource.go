package resources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/api"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/table"
)

// Resource is a DRF-style collection endpoint: list at path, items at
// path + id + "/".
type Resource[T any] struct {
	api     api.Requester
	name    string
	path    string
	sortMap map[string]string
}

func New[T any](requester api.Requester, name, path string, sortMap map[string]string) *Resource[T] {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return &Resource[T]{api: requester, name: name, path: path, sortMap: sortMap}
}

func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) List(ctx context.Context, params table.Params) (table.Page[T], error) {
	var page table.Page[T]
	resp, err := r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: r.path, Query: params.Values()})
	if err != nil {
		return page, err
	}
	if err := resp.Decode(&page); err != nil {
		return table.Page[T]{}, err
	}
	return page, nil
}

// Table is the list query function for UIs, with this resource's sort map.
func (r *Resource[T]) Table(logger logging.Logger) table.QueryFunc[T] {
	return table.New(r.List, table.Config{SortMap: r.sortMap, Resource: r.name, Logger: logger})
}

func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.one(ctx, http.MethodGet, r.item(id), nil)
}

func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	return r.one(ctx, http.MethodPost, r.path, body)
}

// Update applies a partial update.
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (*T, error) {
	return r.one(ctx, http.MethodPatch, r.item(id), body)
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: r.item(id)})
	return err
}

func (r *Resource[T]) one(ctx context.Context, method, path string, body any) (*T, error) {
	resp, err := r.api.Do(ctx, api.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	var out T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) item(id string) string {
	return r.path + url.PathEscape(strings.TrimSpace(id)) + "/"
}
