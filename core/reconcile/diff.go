package reconcile

import (
	"fmt"

	"moodle-sync/core/records"
)

// FieldChange describes one field whose normalized value differs between target and source.
type FieldChange struct {
	// Field is the Moodle field name.
	Field string `json:"field"`
	// Target is the normalized value currently held by the target.
	Target string `json:"target"`
	// Source is the normalized authoritative value.
	Source string `json:"source"`
}

// String renders the change as "field: target=... source=...".
func (c FieldChange) String() string {
	return fmt.Sprintf("%s: target=%s source=%s", c.Field, c.Target, c.Source)
}

// Changes is the result of comparing one course pair.
type Changes struct {
	// Fields lists every differing field in update-field order.
	Fields []FieldChange `json:"fields"`
	// Skipped lists update fields that were not compared and why.
	Skipped []string `json:"skipped,omitempty"`
}

// Needed reports whether an update is required.
func (c Changes) Needed() bool {
	return len(c.Fields) > 0
}

// Strings renders each change for logging.
func (c Changes) Strings() []string {
	out := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = f.String()
	}
	return out
}

// Diff compares target against source over the update fields.
//
// Values are compared in normalized form (HTML entities decoded, booleans as 1/0).
// A field absent on either side is skipped. The end date is skipped when the
// target computes it automatically (automaticenddate = 1) and automaticenddate
// is not itself an update field.
func Diff(target, source records.Course, update []string) Changes {
	var changes Changes

	autoEnd := false
	if v, ok := target.Option(records.FieldAutomaticEndDate); ok && v == 1 {
		autoEnd = true
	}
	updatesAutoEnd := false
	for _, f := range update {
		if f == records.FieldAutomaticEndDate {
			updatesAutoEnd = true
			break
		}
	}

	for _, field := range update {
		if field == records.FieldEndDate && autoEnd && !updatesAutoEnd {
			changes.Skipped = append(changes.Skipped, field+": automatic end date")
			continue
		}

		sv, sok := source.Value(field)
		if !sok {
			changes.Skipped = append(changes.Skipped, field+": absent in source")
			continue
		}
		tv, tok := target.Value(field)
		if !tok {
			changes.Skipped = append(changes.Skipped, field+": absent in target")
			continue
		}

		sn, tn := records.Normalize(sv), records.Normalize(tv)
		if sn != tn {
			changes.Fields = append(changes.Fields, FieldChange{Field: field, Target: tn, Source: sn})
		}
	}

	return changes
}
