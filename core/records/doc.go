// Package records defines the record shapes exchanged between sources, targets and the sync engines.
//
// # Records
//
//   - Course: a course keyed by shortname, with optional fields that are nil when a backend does not report them.
//   - User: a person account keyed by username.
//   - Enrolment: one source roster row (course shortname, username, role, course status).
//   - Membership: one target roster row (user id, course id, role id).
//   - Outcome: the effect of an enrolment mutation.
//
// Course fields are addressed by their Moodle names (shortname, fullname, startdate, ...) so that
// change detection and backends share one vocabulary.
//
// # Roles
//
// RoleTable holds the stock Moodle roles and can be extended from a YAML file.
//
//	table := records.NewRoleTable()
//	extra, _ := records.LoadRoles("roles.yaml")
//	table.Define(extra...)
//	student, _ := table.Lookup("student")
package records
