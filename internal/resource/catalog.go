package resource

import (
	"context"
	"net/url"
	"sort"
)

// Subcategories scopes option lists by category.
type Subcategories struct {
	*Resource[Subcategory]
}

// NewSubcategories creates the subcategory resource.
func NewSubcategories(deps Deps) *Subcategories {
	return &Subcategories{Resource: New[Subcategory](Spec{
		Name:       "subcategory",
		Plural:     "subcategories",
		StaleTime:  ShortStaleTime,
		FilterKeys: []string{"category_id", "is_active"},
	}, deps)}
}

// Options lists the subcategories of categoryID.
func (s *Subcategories) Options(ctx context.Context, categoryID ID) ([]Option, error) {
	var filter url.Values
	if categoryID != "" {
		filter = url.Values{"category_id": {string(categoryID)}}
	}
	return s.Resource.Options(ctx, filter)
}

// Catalog holds every resource of the dashboard.
type Catalog struct {
	Categories    *Resource[Category]
	Subcategories *Subcategories
	Posts         *Posts

	Users       *Resource[Record]
	Roles       *Resource[Record]
	Permissions *Resource[Record]
	Menus       *Resource[Record]
	Submenus    *Resource[Record]
	Messages    *Resource[Record]
	Comments    *Resource[Record]
}

// NewCatalog builds all resources on the shared services.
func NewCatalog(deps Deps) *Catalog {
	record := func(name, plural string) *Resource[Record] {
		return New[Record](Spec{Name: name, Plural: plural, StaleTime: ShortStaleTime}, deps)
	}

	return &Catalog{
		Categories: New[Category](Spec{
			Name:      "category",
			Plural:    "categories",
			StaleTime: ShortStaleTime,
		}, deps),
		Subcategories: NewSubcategories(deps),
		Posts:         NewPosts(deps),
		Users:         record("user", "users"),
		Roles:         record("role", "roles"),
		Permissions:   record("permission", "permissions"),
		Menus:         record("menu", "menus"),
		Submenus:      record("submenu", "submenus"),
		Messages:      record("message", "messages"),
		Comments:      record("comment", "comments"),
	}
}

// Browsers indexes every resource by name.
func (c *Catalog) Browsers() map[string]Browser {
	return map[string]Browser{
		"category":    c.Categories,
		"subcategory": c.Subcategories,
		"post":        c.Posts,
		"user":        c.Users,
		"role":        c.Roles,
		"permission":  c.Permissions,
		"menu":        c.Menus,
		"submenu":     c.Submenus,
		"message":     c.Messages,
		"comment":     c.Comments,
	}
}

// Lookup finds a resource by name.
func (c *Catalog) Lookup(name string) (Browser, bool) {
	b, ok := c.Browsers()[name]
	return b, ok
}

// Names lists the resource names, sorted.
func (c *Catalog) Names() []string {
	browsers := c.Browsers()
	names := make([]string, 0, len(browsers))
	for n := range browsers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
