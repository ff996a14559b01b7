package action

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(s)) {
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// Sort maps a field to its direction; encoded as sort[<field>]=<dir>.
type Sort map[string]SortDirection

// Page is the pagination shared by every list query.
type Page struct {
	Page  int
	Limit int
	Sort  Sort
}

func (p Page) encode(v url.Values) {
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	fields := make([]string, 0, len(p.Sort))
	for f := range p.Sort {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		v.Set("sort["+f+"]", string(p.Sort[f]))
	}
}

type TraceQuery struct {
	Page
	Username  string
	StartDate string
	EndDate   string
	LengthMin int
	LengthMax int
}

func (q TraceQuery) Values() url.Values {
	v := url.Values{}
	q.Page.encode(v)
	setString(v, "username", q.Username)
	setString(v, "startDate", q.StartDate)
	setString(v, "endDate", q.EndDate)
	setInt(v, "lengthMin", q.LengthMin)
	setInt(v, "lengthMax", q.LengthMax)
	return v
}

type PhotoQuery struct {
	Page
	Username       string
	StartDate      string
	EndDate        string
	OsmElementType string
	OsmElementID   string
}

func (q PhotoQuery) Values() url.Values {
	v := url.Values{}
	q.Page.encode(v)
	setString(v, "username", q.Username)
	setString(v, "startDate", q.StartDate)
	setString(v, "endDate", q.EndDate)
	setString(v, "osmElementType", q.OsmElementType)
	setString(v, "osmElementId", q.OsmElementID)
	return v
}

type UserQuery struct {
	Page
	Username string
}

func (q UserQuery) Values() url.Values {
	v := url.Values{}
	q.Page.encode(v)
	setString(v, "username", q.Username)
	return v
}

// ParsePage reads page, limit and sort[<field>] from an incoming query.
func ParsePage(v url.Values) (Page, error) {
	var p Page
	var err error
	if s := v.Get("page"); s != "" {
		if p.Page, err = strconv.Atoi(s); err != nil || p.Page < 1 {
			return Page{}, fmt.Errorf("invalid page %q", s)
		}
	}
	if s := v.Get("limit"); s != "" {
		if p.Limit, err = strconv.Atoi(s); err != nil || p.Limit < 1 {
			return Page{}, fmt.Errorf("invalid limit %q", s)
		}
	}
	for key, vals := range v {
		if !strings.HasPrefix(key, "sort[") || !strings.HasSuffix(key, "]") || len(vals) == 0 {
			continue
		}
		field := key[len("sort[") : len(key)-1]
		if field == "" {
			continue
		}
		dir, err := ParseSortDirection(vals[0])
		if err != nil {
			return Page{}, err
		}
		if p.Sort == nil {
			p.Sort = Sort{}
		}
		p.Sort[field] = dir
	}
	return p, nil
}

// ParseSortFlag reads "field:dir" pairs as given on the command line.
func ParseSortFlag(pairs []string) (Sort, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	s := Sort{}
	for _, pair := range pairs {
		field, dir, ok := strings.Cut(pair, ":")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid sort %q, want field:asc|desc", pair)
		}
		d, err := ParseSortDirection(dir)
		if err != nil {
			return nil, err
		}
		s[field] = d
	}
	return s, nil
}

func setString(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int) {
	if val != 0 {
		v.Set(key, strconv.Itoa(val))
	}
}

func withQuery(base string, v url.Values) string {
	if enc := v.Encode(); enc != "" {
		return base + "?" + enc
	}
	return base
}
