package client

import (
	"fmt"
	"net/url"
)

// SearchCriteria builds the platform's structured list-endpoint query
// encoding. Filter groups are ANDed together; filters inside one group are
// ORed. The zero value is an unfiltered, unpaginated query.
type SearchCriteria struct {
	groups     [][]Filter
	sortOrders []sortOrder
	pageSize   int
	page       int
}

// Filter is one field comparison. ConditionType is the platform's operator
// vocabulary: eq, like, in, gt, lt, and friends.
type Filter struct {
	Field         string
	Value         string
	ConditionType string
}

type sortOrder struct {
	field     string
	direction string
}

// Where appends a single-filter AND group, the common case.
func (c *SearchCriteria) Where(field, conditionType, value string) *SearchCriteria {
	c.groups = append(c.groups, []Filter{{Field: field, Value: value, ConditionType: conditionType}})
	return c
}

// WhereAny appends one group whose filters are ORed together.
func (c *SearchCriteria) WhereAny(filters ...Filter) *SearchCriteria {
	if len(filters) > 0 {
		c.groups = append(c.groups, filters)
	}
	return c
}

// SortBy appends a sort order; direction is ASC or DESC.
func (c *SearchCriteria) SortBy(field, direction string) *SearchCriteria {
	c.sortOrders = append(c.sortOrders, sortOrder{field: field, direction: direction})
	return c
}

// Paginate sets page size and the 1-based current page.
func (c *SearchCriteria) Paginate(pageSize, currentPage int) *SearchCriteria {
	c.pageSize = pageSize
	c.page = currentPage
	return c
}

// Values renders the criteria as query parameters in the
// searchCriteria[filterGroups][i][filters][j][...] encoding the platform's
// list endpoints expect.
func (c *SearchCriteria) Values() url.Values {
	values := url.Values{}
	for gi, group := range c.groups {
		for fi, f := range group {
			prefix := fmt.Sprintf("searchCriteria[filterGroups][%d][filters][%d]", gi, fi)
			values.Set(prefix+"[field]", f.Field)
			values.Set(prefix+"[value]", f.Value)
			if f.ConditionType != "" {
				values.Set(prefix+"[conditionType]", f.ConditionType)
			}
		}
	}
	for si, s := range c.sortOrders {
		prefix := fmt.Sprintf("searchCriteria[sortOrders][%d]", si)
		values.Set(prefix+"[field]", s.field)
		values.Set(prefix+"[direction]", s.direction)
	}
	if c.pageSize > 0 {
		values.Set("searchCriteria[pageSize]", fmt.Sprint(c.pageSize))
	}
	if c.page > 0 {
		values.Set("searchCriteria[currentPage]", fmt.Sprint(c.page))
	}
	return values
}
