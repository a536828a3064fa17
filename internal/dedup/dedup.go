// Package dedup removes repeated items from reference lists and record sets.
//
// Record-level dedup is deliberately aggressive: a record is dropped when
// either its fingerprint or its locator was seen before, so the same text under
// two URLs collapses to one, and so do two fetches of one URL. Reference-level
// dedup runs before fetching and keys on the locator alone.
package dedup

import (
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// Set tracks fingerprints and locators admitted so far in one pass.
type Set struct {
	fingerprints map[string]struct{}
	locators     map[string]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		fingerprints: make(map[string]struct{}),
		locators:     make(map[string]struct{}),
	}
}

// Admit reports whether rec is new. A rejected record leaves the set unchanged.
func (s *Set) Admit(rec harvest.HarvestedRecord) bool {
	if _, dup := s.fingerprints[rec.Fingerprint]; dup {
		return false
	}
	if _, dup := s.locators[rec.URL]; dup {
		return false
	}
	s.fingerprints[rec.Fingerprint] = struct{}{}
	s.locators[rec.URL] = struct{}{}
	return true
}

// AdmitLocator reports whether url is new and records it.
func (s *Set) AdmitLocator(url string) bool {
	if _, dup := s.locators[url]; dup {
		return false
	}
	s.locators[url] = struct{}{}
	return true
}

// Records returns the first occurrences of in, in input order.
func Records(in []harvest.HarvestedRecord) []harvest.HarvestedRecord {
	set := NewSet()
	out := make([]harvest.HarvestedRecord, 0, len(in))
	for _, rec := range in {
		if set.Admit(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// References returns the first reference for each locator, in input order.
func References(in []harvest.ItemReference) []harvest.ItemReference {
	set := NewSet()
	out := make([]harvest.ItemReference, 0, len(in))
	for _, ref := range in {
		if set.AdmitLocator(ref.URL) {
			out = append(out, ref)
		}
	}
	return out
}
