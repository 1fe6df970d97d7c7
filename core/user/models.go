package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/foureyes/bando/core"
)

// Roles
const (
	RoleStudent        = "Student"
	RoleProfessor      = "Professor"
	RoleDDI            = "DDI"
	RoleTeachingOffice = "Teaching Office"
)

var (
	AllRoles = []string{RoleStudent, RoleProfessor, RoleDDI, RoleTeachingOffice}

	// StaffRoles may administer users.
	StaffRoles = []string{RoleDDI, RoleTeachingOffice}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Professor", Value: RoleProfessor},
		{Name: "DDI", Value: RoleDDI},
		{Name: "Teaching Office", Value: RoleTeachingOffice},
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Surname            string    `json:"surname"`
	Role               string    `json:"role"`
	Verified           bool      `json:"verified"`
	PasswordHash       []byte    `json:"-"`
	RegistrationNumber string    `json:"registration_number,omitempty"` // students only
	BirthDate          string    `json:"birth_date,omitempty"`          // students only, YYYY-MM-DD
	CreatedAt          time.Time `json:"created_at"`                    // UTC
	UpdatedAt          time.Time `json:"updated_at"`                    // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) IsStudent() bool        { return u.Role == RoleStudent }
func (u *User) IsProfessor() bool      { return u.Role == RoleProfessor }
func (u *User) IsDDI() bool            { return u.Role == RoleDDI }
func (u *User) IsTeachingOffice() bool { return u.Role == RoleTeachingOffice }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email              string `json:"email" validate:"required,email,max=254"`
	Name               string `json:"name" validate:"required,max=20,personname"`
	Surname            string `json:"surname" validate:"required,max=20,personname"`
	Role               string `json:"role" validate:"required,userrole"`
	Password           string `json:"password" validate:"required"`
	PasswordConfirm    string `json:"password_confirm" validate:"required,eqfield=Password"`
	RegistrationNumber string `json:"registration_number" validate:"omitempty,max=20"`
	BirthDate          string `json:"birth_date" validate:"omitempty,isodate"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.CleanString(nu.Name)
	nu.Surname = core.CleanString(nu.Surname)
	nu.RegistrationNumber = core.CleanString(nu.RegistrationNumber)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	Name            string `json:"name" validate:"omitempty,max=20,personname"`
	Surname         string `json:"surname" validate:"omitempty,max=20,personname"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	Verified        *bool  `json:"verified"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	email string // of the user being updated, for the password similarity check
}

func (uu *UpdateUser) Validate(orig User, validate *validator.Validate) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Surname = core.CleanString(uu.Surname)
	uu.email = orig.Email
	return validate.Struct(uu)
}

// QueryFilter narrows a user search. Name and Surname are case-insensitive prefixes.
type QueryFilter struct {
	Name     string `query:"name"`
	Surname  string `query:"surname"`
	Role     string `query:"role"`
	Verified *bool  `query:"-"` // bound by hand: echo does not bind pointers
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Name == "" && qf.Surname == "" && qf.Role == "" && qf.Verified == nil
}

func (qf *QueryFilter) Clean() {
	qf.Name = core.CleanString(qf.Name)
	qf.Surname = core.CleanString(qf.Surname)
	qf.Role = core.CleanString(qf.Role)
}
