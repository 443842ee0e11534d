package resource

import (
	"fmt"
	"strconv"

	"github.com/Laisky/laisky-cms-admin/internal/table"
)

func textColumn(key, header string, width int) table.Column[Record] {
	return table.Column[Record]{
		Key:    key,
		Header: header,
		Width:  width,
		Get:    func(r Record) string { return cellText(r[key]) },
		Set: func(r *Record, v string) {
			cp := make(Record, len(*r))
			for k, x := range *r {
				cp[k] = x
			}
			cp[key] = v
			*r = cp
		},
	}
}

func editable(c table.Column[Record], required bool) table.Column[Record] {
	c.Editable = true
	c.Required = required
	return c
}

func sortable(c table.Column[Record]) table.Column[Record] {
	c.Sortable = true
	return c
}

func filterable(c table.Column[Record]) table.Column[Record] {
	c.Filterable = true
	return c
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

// TableColumns returns the list columns of the named resource.
func TableColumns(name string) []table.Column[Record] {
	switch name {
	case "category":
		return []table.Column[Record]{
			sortable(editable(textColumn("name", "Name", 24), true)),
			editable(textColumn("description", "Description", 36), false),
			textColumn("slug", "Slug", 24),
		}
	case "subcategory":
		return []table.Column[Record]{
			sortable(textColumn("category_name", "Category", 18)),
			sortable(editable(textColumn("subcategory", "Subcategory", 24), true)),
			editable(textColumn("description", "Description", 30), false),
			filterable(editable(textColumn("is_active", "Active", 8), true)),
		}
	case "post":
		return []table.Column[Record]{
			sortable(textColumn("title", "Title", 36)),
			filterable(textColumn("category_id", "Category", 10)),
			filterable(textColumn("subcategory_id", "Subcategory", 12)),
			filterable(textColumn("is_active", "Status", 10)),
			sortable(textColumn("created_at", "Created", 20)),
		}
	case "user":
		return []table.Column[Record]{
			sortable(textColumn("name", "Name", 24)),
			sortable(textColumn("email", "Email", 30)),
		}
	case "message":
		return []table.Column[Record]{
			textColumn("name", "Name", 18),
			textColumn("email", "Email", 24),
			textColumn("message", "Message", 40),
		}
	case "comment":
		return []table.Column[Record]{
			textColumn("name", "Name", 18),
			textColumn("comment", "Comment", 48),
		}
	default:
		return []table.Column[Record]{
			sortable(editable(textColumn("name", "Name", 30), true)),
			sortable(textColumn("created_at", "Created", 20)),
		}
	}
}

// NewTable creates the table state of the named resource.
func NewTable(name string) *table.State[Record] {
	return table.New(TableColumns(name), func(r Record) string {
		return string(r.EntityID())
	})
}
