package entity

import (
	"sort"
	"strings"
)

// Seniority values understood by the cache and the provider.
var Seniorities = []string{"owner", "founder", "c_suite", "vp", "director", "manager", "senior", "entry", "intern"}

// EnrichmentFilters narrows an employee lookup by title substrings and seniority.
type EnrichmentFilters struct {
	Titles      []string `json:"titles,omitempty"`
	Seniorities []string `json:"seniorities,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f EnrichmentFilters) IsEmpty() bool {
	return len(f.Titles) == 0 && len(f.Seniorities) == 0
}

// Normalized trims, lower-cases, dedupes and sorts the filter values.
func (f EnrichmentFilters) Normalized() EnrichmentFilters {
	return EnrichmentFilters{
		Titles:      normalizeValues(f.Titles, strings.ToLower),
		Seniorities: normalizeValues(f.Seniorities, NormalizeSeniority),
	}
}

// Key is a stable representation used to collapse identical lookups.
func (f EnrichmentFilters) Key() string {
	n := f.Normalized()
	return strings.Join(n.Titles, ",") + "|" + strings.Join(n.Seniorities, ",")
}

// Matches reports whether an employee passes the filters.
func (f EnrichmentFilters) Matches(e GlobalEmployee) bool {
	n := f.Normalized()
	if len(n.Titles) > 0 {
		if e.JobTitle == nil {
			return false
		}
		title := strings.ToLower(*e.JobTitle)
		found := false
		for _, t := range n.Titles {
			if strings.Contains(title, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(n.Seniorities) > 0 {
		if e.Seniority == nil {
			return false
		}
		seniority := NormalizeSeniority(*e.Seniority)
		for _, s := range n.Seniorities {
			if s == seniority {
				return true
			}
		}
		return false
	}
	return true
}

// NormalizeSeniority maps provider and user spellings onto the seniority enum.
// Unknown values are returned lower-cased with separators collapsed to "_".
func NormalizeSeniority(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.NewReplacer("-", "_", " ", "_", ".", "").Replace(v)
	switch v {
	case "":
		return ""
	case "c_level", "clevel", "csuite", "executive", "chief":
		return "c_suite"
	case "vice_president", "vicepresident":
		return "vp"
	case "head", "head_of":
		return "director"
	case "co_founder", "cofounder":
		return "founder"
	case "junior", "entry_level":
		return "entry"
	case "partner":
		return "owner"
	}
	return v
}

func normalizeValues(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = norm(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
