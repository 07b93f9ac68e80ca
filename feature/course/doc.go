// Package course synchronizes courses from an authoritative source into a target.
//
// For every source course the engine resolves (or creates) its category, looks the course up
// on the target by shortname (or idnumber), creates it when absent and otherwise updates it
// when change detection finds a difference in the target's update fields. Courses are never
// deleted.
//
// # Fetch Modes
//
//   - one: every course is looked up on the target individually.
//   - all: the target course list is loaded once and matched locally.
//
// # Usage
//
//	engine := course.NewEngine(source, target, course.Options{}, logger)
//	report, err := engine.Sync(ctx, course.FetchAll)
package course
