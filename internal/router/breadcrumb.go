package router

import "strings"

// Crumb is one segment of the breadcrumb trail.
type Crumb struct {
	Label string
	Path  string
}

// Breadcrumbs builds `home / category / 12` for m.
func Breadcrumbs(m Match) []Crumb {
	crumbs := []Crumb{{Label: "home", Path: PathHome}}

	acc := ""
	for _, seg := range splitPath(m.Location.Path) {
		acc += "/" + seg
		crumbs = append(crumbs, Crumb{Label: strings.ToLower(seg), Path: acc})
	}
	return crumbs
}

// Trail joins crumb labels with " / ".
func Trail(crumbs []Crumb) string {
	labels := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		labels = append(labels, c.Label)
	}
	return strings.Join(labels, " / ")
}
