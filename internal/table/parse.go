package table

import (
	"net/url"
	"strconv"
	"strings"
)

var reservedKeys = map[string]struct{}{
	"pageIndex": {},
	"pageSize":  {},
	"search":    {},
	"sort":      {},
}

// ParseQuery reads table state from portal query parameters:
// pageIndex, pageSize, search, sort ("col" or "-col", repeatable). Every
// other parameter becomes a filter.
func ParseQuery(values url.Values, defaultPageSize, maxPageSize int) Query {
	query := Query{
		PageIndex: atoiOr(values.Get("pageIndex"), 0),
		PageSize:  atoiOr(values.Get("pageSize"), defaultPageSize),
		Search:    strings.TrimSpace(values.Get("search")),
	}
	if query.PageIndex < 0 {
		query.PageIndex = 0
	}
	if query.PageSize <= 0 {
		query.PageSize = defaultPageSize
	}
	if maxPageSize > 0 && query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}

	for _, raw := range values["sort"] {
		for _, column := range strings.Split(raw, ",") {
			column = strings.TrimSpace(column)
			if column == "" {
				continue
			}
			if strings.HasPrefix(column, "-") {
				query.Sorting = append(query.Sorting, Sort{ID: strings.TrimPrefix(column, "-"), Desc: true})
				continue
			}
			query.Sorting = append(query.Sorting, Sort{ID: column})
		}
	}

	for key, list := range values {
		if _, reserved := reservedKeys[key]; reserved || len(list) == 0 {
			continue
		}
		if query.Filters == nil {
			query.Filters = map[string]string{}
		}
		query.Filters[key] = list[0]
	}
	return query
}

func atoiOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
