// ABOUTME: Lead deduplication and duplicate-group clustering logic
// ABOUTME: Matches leads by normalized company name plus phone/site/origin overlap
package sync

import (
	"github.com/coldflow/coldflow/models"
)

// PhoneSet collects the normalized phone numbers from both contact lists.
func PhoneSet(lead *models.Lead) map[string]struct{} {
	phones := make(map[string]struct{})
	for _, c := range lead.Decisors {
		if p := NormalizePhone(c.Phone); p != "" {
			phones[p] = struct{}{}
		}
	}
	for _, c := range lead.Attendants {
		if p := NormalizePhone(c.Phone); p != "" {
			phones[p] = struct{}{}
		}
	}
	return phones
}

// IsDuplicate reports whether two leads describe the same real-world company.
// Company names must be non-empty and equal after normalization, and at least
// one secondary signal must overlap: a shared phone number, the same site URL,
// or the same origin link.
func IsDuplicate(a, b *models.Lead) bool {
	nameA := NormalizeText(a.CompanyName)
	nameB := NormalizeText(b.CompanyName)
	if nameA == "" || nameB == "" || nameA != nameB {
		return false
	}

	phonesB := PhoneSet(b)
	for phone := range PhoneSet(a) {
		if _, ok := phonesB[phone]; ok {
			return true
		}
	}

	if site := NormalizeURL(a.SiteURL); site != "" && site == NormalizeURL(b.SiteURL) {
		return true
	}
	if origin := NormalizeURL(a.OriginLink); origin != "" && origin == NormalizeURL(b.OriginLink) {
		return true
	}

	return false
}

// BuildDuplicateGroups clusters active leads into connected components of the
// IsDuplicate relation. Membership is transitive: if A matches B and B matches
// C, all three land in one group even when A and C don't match directly.
// Groups of size 1 are discarded.
func BuildDuplicateGroups(leads []models.Lead) [][]models.Lead {
	var active []models.Lead
	for i := range leads {
		if leads[i].Active() {
			active = append(active, leads[i])
		}
	}

	used := make(map[string]struct{})
	var groups [][]models.Lead

	for i := range active {
		seed := active[i]
		if _, ok := used[seed.ID]; ok {
			continue
		}
		group := []models.Lead{seed}
		used[seed.ID] = struct{}{}

		changed := true
		for changed {
			changed = false
			for j := range active {
				candidate := active[j]
				if _, ok := used[candidate.ID]; ok {
					continue
				}
				for k := range group {
					if IsDuplicate(&group[k], &candidate) {
						group = append(group, candidate)
						used[candidate.ID] = struct{}{}
						changed = true
						break
					}
				}
			}
		}

		if len(group) > 1 {
			groups = append(groups, group)
		}
	}

	return groups
}
