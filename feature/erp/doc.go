// Package erp reads the authoritative course, roster and account data from views in the
// institution's ERP database.
//
// The views are queried with SELECT * so they may carry extra columns for filtering on the
// ERP side. Columns whose names match Moodle course fields are mapped onto them. Date columns
// are converted to unix timestamps; columns without a zone are read in the configured timezone.
//
// # Views
//
// The course view carries shortname, fullname and optionally idnumber, categoryname,
// categoryparent, summary, startdate, enddate and the other Moodle course fields.
//
// The enrolment view carries one row per shortname, username and role, plus an optional
// course_status and started flag. ERP role names are translated through the role map.
//
// The user view carries username, email, firstname, lastname and optionally auth and password.
//
// # Usage
//
//	src, err := erp.Open(cfg.Source, logger)
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//	roster, err := src.Roster(ctx, "HIS-101")
package erp
