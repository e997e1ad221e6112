package router

// Route is one named mapping from a resolved intent to a downstream
// collaborator invocation.
type Route struct {
	Name   string // route name reported in responses
	Target string // collaborator name in the registry
}

// Table maps intent labels to routes, optionally scoped by tenant. Lookup is
// deterministic and total: every label resolves, unmapped labels fall back to
// the catch-all route. The table is read-only after initialization.
type Table struct {
	routes   map[string]Route
	tenants  map[string]map[string]Route
	catchAll string
}

func NewTable(routes map[string]Route, tenants map[string]map[string]Route, catchAll string) *Table {
	if routes == nil {
		routes = make(map[string]Route)
	}
	return &Table{routes: routes, tenants: tenants, catchAll: catchAll}
}

// Lookup resolves a label within an optional tenant scope. The second return
// is false only when even the catch-all route is missing, which is a
// configuration error.
func (t *Table) Lookup(label, tenant string) (Route, bool) {
	if tenant != "" {
		if overrides, ok := t.tenants[tenant]; ok {
			if route, ok := overrides[label]; ok {
				return route, true
			}
		}
	}
	if route, ok := t.routes[label]; ok {
		return route, true
	}
	if route, ok := t.routes[t.catchAll]; ok {
		return route, true
	}
	return Route{}, false
}
