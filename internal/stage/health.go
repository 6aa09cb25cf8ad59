package stage

import "strings"

// Health reports whether one stage adapter can take work.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks an adapter ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks an adapter unavailable with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// AllReady reports whether every check passed. An empty set is ready.
func AllReady(checks []Health) bool {
	for _, h := range checks {
		if !h.Ready {
			return false
		}
	}
	return true
}

// Describe joins the failing checks as "name: detail" pairs, or returns ""
// when all are ready.
func Describe(checks []Health) string {
	var parts []string
	for _, h := range checks {
		if h.Ready {
			continue
		}
		if h.Detail == "" {
			parts = append(parts, h.Name)
			continue
		}
		parts = append(parts, h.Name+": "+h.Detail)
	}
	return strings.Join(parts, "; ")
}
