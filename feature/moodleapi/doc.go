// Package moodleapi implements the course, enrolment and user targets on top of the Moodle
// REST web service (/webservice/rest/server.php).
//
// # Client
//
// Client adds the token, the function name and moodlewsrestformat=json to every call. Reads
// are sent as GET, throttled and retried with exponential backoff; mutations are sent as POST
// and skipped entirely in dry-run mode, where the providers return the dry-run sentinels
// instead. Moodle exception payloads and non-200 responses become provider.ErrTransport.
// The token never appears in logs.
//
// # Courses
//
// New courses are duplicated from a template course selected by shortname pattern
// (core_course_duplicate_course) and then updated with every tracked field. Course format
// options are flattened into the course on read and re-nested on update.
//
// # Enrolments
//
// Enrolment uses the manual enrolment plugin. Removing a single role goes through
// core_role_unassign_roles so the participation survives; deleting a user from a course
// unenrols them entirely. Roles come from the role table, optionally extended through
// core_role_get_roles.
//
// # Usage
//
//	client, err := moodleapi.NewClient(cfg.Moodle, dryRun, logger)
//	courses, err := moodleapi.NewCourseProvider(client, cfg.Moodle, logger)
//	enrolments := moodleapi.NewEnrolmentProvider(client, cfg.Moodle, roles, logger)
package moodleapi
