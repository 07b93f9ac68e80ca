package records

// User is a person account.
type User struct {
	// ID is assigned by the target.
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"required"`
	Auth      string `json:"auth,omitempty"`
	// Password is only carried from source to target and never serialized.
	Password string `json:"-"`
}
