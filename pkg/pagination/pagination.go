package pagination

import (
	"net/url"
	"strconv"

	"github.com/practicanteticPX/docuprex/pkg/query"
)

// Sortable maps the sort names a client may send to projection view fields.
type Sortable map[string]string

// PageRequest is a normalized request for one page of a list.
type PageRequest struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   *string           `json:"search,omitempty"`
	Sort     []query.SortField `json:"-"`
}

// Normalize clamps Page to at least 1 and PageSize into [1, MaxPageSize].
func (r *PageRequest) Normalize(cfg Config) {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	if r.PageSize > cfg.MaxPageSize {
		r.PageSize = cfg.MaxPageSize
	}
}

func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PageRequestFromQuery reads page, page_size, search and sort from values.
// Sort names absent from sortable are dropped so unmapped input never reaches SQL.
func PageRequestFromQuery(values url.Values, cfg Config, sortable Sortable) PageRequest {
	page, _ := strconv.Atoi(values.Get("page"))
	pageSize, _ := strconv.Atoi(values.Get("page_size"))

	req := PageRequest{Page: page, PageSize: pageSize}
	if s := values.Get("search"); s != "" {
		req.Search = &s
	}

	for _, f := range query.ParseSortFields(values.Get("sort")) {
		if field, ok := sortable[f.Field]; ok {
			req.Sort = append(req.Sort, query.SortField{Field: field, Descending: f.Descending})
		}
	}

	req.Normalize(cfg)
	return req
}

// PageResult is one page of T with totals.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func NewPageResult[T any](data []T, total, page, pageSize int) PageResult[T] {
	totalPages := max((total+pageSize-1)/pageSize, 1)
	if data == nil {
		data = []T{}
	}
	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
