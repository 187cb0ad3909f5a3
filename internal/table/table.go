package table

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
)

// Sort is one column of table sort state.
type Sort struct {
	ID   string `json:"id"`
	Desc bool   `json:"desc"`
}

// Query is table state as a list UI holds it. PageIndex is 0-based.
type Query struct {
	PageIndex int
	PageSize  int
	Search    string
	Sorting   []Sort
	Filters   map[string]string
}

// Params is the query shape the LMS API list endpoints accept. Page is
// 1-based; empty Search and Ordering are not sent.
type Params struct {
	Page     int
	PageSize int
	Search   string
	Ordering string
	Filters  map[string]string
}

// Values encodes p as a query string. Reserved keys win over filters of
// the same name.
func (p Params) Values() url.Values {
	values := url.Values{}
	for key, value := range p.Filters {
		values.Set(key, value)
	}
	values.Set("page", strconv.Itoa(p.Page))
	values.Set("page_size", strconv.Itoa(p.PageSize))
	values.Del("search")
	values.Del("ordering")
	if search := strings.TrimSpace(p.Search); search != "" {
		values.Set("search", search)
	}
	if p.Ordering != "" {
		values.Set("ordering", p.Ordering)
	}
	return values
}

// Page is a paginated list response: {count, next, previous, results}.
type Page[T any] struct {
	Count    *int    `json:"count,omitempty"`
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
	Results  []T     `json:"results"`

	paginated bool
}

// UnmarshalJSON accepts both the paginated envelope and a bare array; the
// latter is an endpoint that ignores pagination.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return err
		}
		*p = Page[T]{Results: rows}
		return nil
	}

	var envelope struct {
		Count    *int            `json:"count"`
		Next     *string         `json:"next"`
		Previous *string         `json:"previous"`
		Results  json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	*p = Page[T]{Count: envelope.Count, Next: envelope.Next, Previous: envelope.Previous}
	if len(envelope.Results) > 0 && string(envelope.Results) != "null" {
		p.paginated = true
		return json.Unmarshal(envelope.Results, &p.Results)
	}
	if envelope.Results != nil {
		p.paginated = true
	}
	return nil
}

// Paginated reports whether the response carried a results field.
func (p Page[T]) Paginated() bool {
	return p.paginated
}

// NewPage builds a paginated response holding rows out of count.
func NewPage[T any](rows []T, count int) Page[T] {
	return Page[T]{Count: &count, Results: rows, paginated: true}
}

// Result is what a list UI renders.
type Result[T any] struct {
	Rows       []T `json:"rows"`
	PageCount  int `json:"pageCount"`
	TotalCount int `json:"totalCount"`
}

type APIFunc[T any] func(ctx context.Context, params Params) (Page[T], error)

type QueryFunc[T any] func(ctx context.Context, query Query) Result[T]

type Config struct {
	// SortMap translates UI column ids to API ordering fields. Columns not in
	// the map are sent as-is.
	SortMap map[string]string
	// Resource names the list in logs and metrics.
	Resource string
	Logger   logging.Logger
}

// New builds the query function a list UI calls with its table state. It
// never fails: API errors are logged and yield an empty result.
func New[T any](fn APIFunc[T], cfg Config) QueryFunc[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	resource := cfg.Resource
	if resource == "" {
		resource = "unnamed"
	}
	return func(ctx context.Context, query Query) Result[T] {
		params := BuildParams(query, cfg.SortMap)
		page, err := fn(ctx, params)
		if err != nil {
			logger.Error("table query %s failed: %v", resource, err)
			queryFailures.WithLabelValues(resource).Inc()
			return Empty[T]()
		}
		return Normalize(page, query.PageSize)
	}
}

// BuildParams maps table state to API params. Whitespace-only search is
// dropped.
func BuildParams(query Query, sortMap map[string]string) Params {
	params := Params{
		Page:     query.PageIndex + 1,
		PageSize: query.PageSize,
		Search:   strings.TrimSpace(query.Search),
		Ordering: Ordering(query.Sorting, sortMap),
	}
	if len(query.Filters) > 0 {
		params.Filters = make(map[string]string, len(query.Filters))
		for key, value := range query.Filters {
			params.Filters[key] = value
		}
	}
	return params
}

// Ordering encodes the first sort column; later columns are ignored.
func Ordering(sorting []Sort, sortMap map[string]string) string {
	if len(sorting) == 0 || sorting[0].ID == "" {
		return ""
	}
	field := sorting[0].ID
	if mapped, ok := sortMap[field]; ok && mapped != "" {
		field = mapped
	}
	if sorting[0].Desc {
		return "-" + field
	}
	return field
}

// Normalize turns an API page into what the list UI renders. Bare arrays
// count their own rows; a paginated response without count totals zero.
func Normalize[T any](page Page[T], pageSize int) Result[T] {
	rows := page.Results
	if rows == nil {
		rows = []T{}
	}
	total := len(rows)
	if page.paginated {
		total = 0
		if page.Count != nil {
			total = *page.Count
		}
	}
	return Result[T]{Rows: rows, PageCount: PageCount(total, pageSize), TotalCount: total}
}

// PageCount is ceil(total/pageSize), or 0 when either is not positive.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Empty is the result shown when a query fails.
func Empty[T any]() Result[T] {
	return Result[T]{Rows: []T{}}
}
