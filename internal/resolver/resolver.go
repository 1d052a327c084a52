// Package resolver maps customer names, aliases and abbreviations to
// canonical site identifiers. Unresolved names are never guessed: the
// caller gets none or an ambiguous candidate list and asks the user.
package resolver

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Site is the minimal projection the resolver needs.
type Site struct {
	SiteID   string
	Customer string
}

// Kind tags the resolution outcome.
type Kind int

const (
	None Kind = iota
	Exact
	Ambiguous
)

// Resolution is the outcome of one lookup.
type Resolution struct {
	Kind       Kind
	Site       Site   // set when Kind == Exact
	Candidates []Site // set when Kind == Ambiguous
}

// Resolver resolves free-text site references. Build one per turn from the
// current site list; it is cheap and always consistent with the store.
type Resolver struct {
	sites      []Site
	byID       map[string]Site
	byCustomer map[string][]Site
	byAlias    map[string][]Site
	minScore   int
}

// New indexes sites plus extra aliases (alias → site ID). The Site ID
// prefix before the first dash is always registered as an alias, so
// "MIG" finds MIG-TR-01 without configuration.
func New(sites []Site, aliases map[string][]string, minScore int) *Resolver {
	r := &Resolver{
		sites:      sites,
		byID:       make(map[string]Site),
		byCustomer: make(map[string][]Site),
		byAlias:    make(map[string][]Site),
		minScore:   minScore,
	}

	for _, s := range sites {
		r.byID[strings.ToUpper(s.SiteID)] = s

		if customer := strings.ToLower(strings.TrimSpace(s.Customer)); customer != "" {
			r.byCustomer[customer] = append(r.byCustomer[customer], s)
		}

		if prefix, _, ok := strings.Cut(s.SiteID, "-"); ok {
			key := strings.ToLower(prefix)
			r.byAlias[key] = append(r.byAlias[key], s)
		}
	}

	for siteID, names := range aliases {
		site, ok := r.byID[strings.ToUpper(siteID)]
		if !ok {
			continue
		}
		for _, name := range names {
			key := strings.ToLower(name)
			if !containsSite(r.byAlias[key], site.SiteID) {
				r.byAlias[key] = append(r.byAlias[key], site)
			}
		}
	}

	return r
}

// Resolve finds the site(s) matching query. Lookup order: exact site ID,
// exact customer name, alias, then fuzzy ranking over customer names.
func (r *Resolver) Resolve(query string) Resolution {
	q := strings.TrimSpace(query)
	if q == "" {
		return Resolution{Kind: None}
	}

	if site, ok := r.byID[strings.ToUpper(q)]; ok {
		return Resolution{Kind: Exact, Site: site}
	}

	qLower := strings.ToLower(q)
	if sites, ok := r.byCustomer[qLower]; ok {
		return fromCandidates(sites)
	}
	if sites, ok := r.byAlias[qLower]; ok {
		return fromCandidates(sites)
	}

	return r.fuzzyResolve(qLower)
}

func (r *Resolver) fuzzyResolve(qLower string) Resolution {
	customers := make([]string, len(r.sites))
	for i, s := range r.sites {
		customers[i] = strings.ToLower(s.Customer)
	}

	matches := fuzzy.Find(qLower, customers)

	var candidates []Site
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Score < r.minScore {
			continue
		}
		site := r.sites[m.Index]
		if seen[site.SiteID] {
			continue
		}
		seen[site.SiteID] = true
		candidates = append(candidates, site)
	}

	return fromCandidates(candidates)
}

func fromCandidates(sites []Site) Resolution {
	switch len(sites) {
	case 0:
		return Resolution{Kind: None}
	case 1:
		return Resolution{Kind: Exact, Site: sites[0]}
	default:
		return Resolution{Kind: Ambiguous, Candidates: sites}
	}
}

func containsSite(sites []Site, siteID string) bool {
	for _, s := range sites {
		if s.SiteID == siteID {
			return true
		}
	}
	return false
}

// Similarity is a token-set Jaccard ratio over normalized words, used by
// the duplicate-write guard to compare issue summaries. 1.0 means the same
// word set; the threshold comes from config, not from here.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?()[]\"'")
		if len(tok) > 1 {
			set[tok] = true
		}
	}
	return set
}
