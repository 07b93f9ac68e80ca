package runner

// Backends select how the Moodle target is reached.
const (
	BackendAPI = "api"
	BackendDB  = "db"
)

// Config holds the sync run settings.
type Config struct {
	// DryRun logs intended mutations instead of applying them.
	DryRun bool `mapstructure:"dry_run" default:"false"`
	// CourseKey matches courses by shortname or idnumber.
	CourseKey string `mapstructure:"course_key" default:"shortname"`
	// Fetch is the course fetch mode, one or all.
	Fetch string `mapstructure:"fetch" default:"all"`
	// AddRoles are the roles the enrolment sync may grant.
	AddRoles []string `mapstructure:"add_roles" default:"student,editingteacher"`
	// RemoveRoles are the roles the enrolment sync may take away.
	RemoveRoles []string `mapstructure:"remove_roles" default:"student"`
	// DeleteUnenroled removes participations of users missing from the source even after
	// the course has started.
	DeleteUnenroled bool `mapstructure:"delete_unenroled" default:"false"`
	// CourseBackend is the Moodle target of course syncs, api or db.
	CourseBackend string `mapstructure:"course_backend" default:"api"`
	// EnrolmentBackend is the Moodle target of enrolment syncs, api or db.
	EnrolmentBackend string `mapstructure:"enrolment_backend" default:"api"`
	// UserBackend is the Moodle target of user syncs, api or db.
	UserBackend string `mapstructure:"user_backend" default:"api"`
	// TimeoutMinutes bounds one run. Zero disables the bound.
	TimeoutMinutes int `mapstructure:"timeout_minutes" default:"60"`
}
