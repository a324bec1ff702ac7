package workflow

// =============================================================================
// LEGACY RECORD CODEC
// =============================================================================
//
// Older clients read approval records under "director" and "ao". The engine
// works on canonical keys only; the persistence and transport boundaries use
// LegacyView to write mirrors and CanonicalRecords to read either shape back.

// LegacyView returns records keyed by name, with every alias of a canonical
// role mirroring the canonical record when mirror is true.
func LegacyView(table *RoleTable, records Records, mirror bool) map[string]ApprovalRecord {
	out := make(map[string]ApprovalRecord, len(records)*2)
	for role, rec := range records {
		out[string(role)] = rec
		if !mirror {
			continue
		}
		for _, alias := range table.Aliases(role) {
			out[alias] = rec
		}
	}
	return out
}

// CanonicalRecords folds name-keyed records onto canonical roles. When a
// canonical key and an alias both carry a record, the decided one wins over a
// pending one; between two decided records the canonical key wins.
func CanonicalRecords(table *RoleTable, raw map[string]ApprovalRecord) (Records, error) {
	out := make(Records, len(raw))
	fromCanonical := make(map[Role]bool, len(raw))
	for name, rec := range raw {
		role, err := table.Canonicalize(name)
		if err != nil {
			return nil, err
		}
		rec.Role = role
		isCanonical := string(role) == name

		existing, seen := out[role]
		switch {
		case !seen:
		case existing.Decision == DecisionPending && rec.Decision != DecisionPending:
		case rec.Decision == DecisionPending && existing.Decision != DecisionPending:
			continue
		case isCanonical && !fromCanonical[role]:
		default:
			continue
		}
		out[role] = rec
		fromCanonical[role] = isCanonical
	}
	return out, nil
}
