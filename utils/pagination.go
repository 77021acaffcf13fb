package utils

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PageOptions bounds page sizes for a listing.
type PageOptions struct {
	DefaultPerPage int
	MaxPerPage     int
	AllowAll       bool
}

var (
	DefaultPageOpts = PageOptions{DefaultPerPage: 20, MaxPerPage: 200}
	ExportPageOpts  = PageOptions{DefaultPerPage: 100, MaxPerPage: 200, AllowAll: true}
)

type PageParams struct {
	Page  int
	Limit int
	Sort  string
	All   bool
}

// ParsePage reads page, limit (or per_page) and sort from the query string.
// sort uses "column" or "-column"; order=desc is accepted as an alias.
func ParsePage(c *fiber.Ctx, opt PageOptions) PageParams {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	raw := strings.TrimSpace(c.Query("limit", c.Query("per_page")))
	p := PageParams{Page: page, Limit: opt.DefaultPerPage}
	if opt.AllowAll && strings.EqualFold(raw, "all") {
		p.All = true
		p.Page = 1
	} else if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > opt.MaxPerPage {
		p.Limit = opt.MaxPerPage
	}

	sort := strings.TrimSpace(c.Query("sort", c.Query("sort_by")))
	if sort != "" && !strings.HasPrefix(sort, "-") && strings.EqualFold(c.Query("order"), "desc") {
		sort = "-" + sort
	}
	p.Sort = sort
	return p
}

// Meta is the "pagination" object of list responses.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func BuildMeta(total int64, p PageParams) Meta {
	limit := p.Limit
	if p.All {
		limit = int(total)
	}
	pages := 1
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
		if pages == 0 {
			pages = 1
		}
	}
	return Meta{
		Page:       p.Page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
