// Package memory provides in-memory course, enrolment and user backends.
//
// Store is a target that records every mutation (Calls, CallsFor) and supports
// per-operation failure injection (FailOn). Source is a plain-struct source.
// Both satisfy the provider contracts and are used to exercise the sync engines
// without a Moodle site or a database.
//
//	store := memory.NewStore()
//	catID := store.AddCategory("History", 0)
//	store.AddCourse(records.Course{Shortname: "HIS-101", Fullname: "History", CategoryID: catID})
//	src := &memory.Source{CourseList: courses}
package memory
