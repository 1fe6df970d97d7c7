package assignment

import (
	"context"
	"math"
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/foureyes/bando/core"
)

// State is a step of the assignment lifecycle: Unassigned → Waiting → Booked → Assigned → Over.
type State string

const (
	StateUnassigned State = "Unassigned"
	StateWaiting    State = "Waiting"
	StateBooked     State = "Booked"
	StateAssigned   State = "Assigned"
	StateOver       State = "Over"
)

var States = []State{StateUnassigned, StateWaiting, StateBooked, StateAssigned, StateOver}

func ParseState(s string) (State, bool) {
	for _, st := range States {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// HasStudent reports whether a student is bound to assignments in this state.
func (s State) HasStudent() bool {
	return s == StateWaiting || s == StateBooked || s == StateAssigned || s == StateOver
}

const (
	TitlePhD    = "PhD"
	TitleMaster = "Master"
)

type Assignment struct {
	ID                  int64   `json:"id,omitempty"`
	NoticeProtocol      string  `json:"notice_protocol"`
	Code                string  `json:"code" validate:"required,max=30,assignmentcode"`
	ActivityDescription string  `json:"activity_description" validate:"required,max=200"`
	TotalNumberHours    int     `json:"total_number_hours" validate:"min=1,max=50"`
	Title               string  `json:"title" validate:"required,oneof=PhD Master"`
	HourlyCost          float64 `json:"hourly_cost" validate:"min=1,max=150,twodecimals"`
	HTFund              string  `json:"ht_fund,omitempty" validate:"omitempty,max=50"`
	State               State   `json:"state" validate:"omitempty,oneof=Unassigned Waiting Booked Assigned Over"`
	Student             string  `json:"student,omitempty" validate:"omitempty,email"`
	Note                string  `json:"note,omitempty" validate:"omitempty,max=500"`
}

// Key is the natural key of an assignment within its notice.
func Key(a Assignment) string { return a.Code }

// Filter narrows a search; empty fields match everything.
type Filter struct {
	Code           string `query:"code"`
	NoticeProtocol string `query:"notice_protocol"`
	State          State  `query:"state"`
	Student        string `query:"student"`
}

func (f *Filter) Clean() {
	f.Code = core.CleanString(f.Code)
	f.NoticeProtocol = core.CleanString(f.NoticeProtocol)
	f.Student = core.CleanString(f.Student, true /* lower */)
}

// Ref points at an assignment by ID, or by notice protocol and code.
type Ref struct {
	ID             int64  `json:"id" param:"id"`
	NoticeProtocol string `json:"notice_protocol"`
	Code           string `json:"code"`
}

func (r Ref) IsZero() bool {
	return r.ID == 0 && (r.NoticeProtocol == "" || r.Code == "")
}

func (r Ref) String() string {
	if r.ID != 0 {
		return "#" + strconv.FormatInt(r.ID, 10)
	}
	return r.NoticeProtocol + " " + r.Code
}

type Repository interface {
	// Create fails with *core.ConflictError when the code is taken within the notice.
	Create(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
	// Update overwrites the row matching a.ID.
	Update(ctx context.Context, a Assignment, exec ...core.DBExecutor) error
	Remove(ctx context.Context, id int64, exec ...core.DBExecutor) error
	Get(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
	GetByCode(ctx context.Context, protocol, code string, exec ...core.DBExecutor) (Assignment, error)
	FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]Assignment, error)
	Search(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Assignment, error)
	// Transition writes next's state, student and note only if the row is still in state from.
	// It reports whether the row was changed.
	Transition(ctx context.Context, id int64, from State, next Assignment, exec ...core.DBExecutor) (bool, error)
	RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
}

var (
	assignmentCodeTag   = "assignmentcode"
	assignmentCodeText  = "{0} must look like \"ABC/123\""
	assignmentCodeRegex = regexp.MustCompile(`^[A-Z]+/[0-9]+$`)

	twoDecimalsTag  = "twodecimals"
	twoDecimalsText = "{0} may have at most two decimals"

	studentStateTag  = "studentstate"
	studentStateText = "{0} must be set exactly when the assignment is Waiting, Booked, Assigned or Over"

	noteStateTag  = "notestate"
	noteStateText = "{0} is required once the assignment is Over, and only then"
)

// InitValidators registers the assignment validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(assignmentCodeTag, func(fl validator.FieldLevel) bool {
		return assignmentCodeRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, assignmentCodeTag, assignmentCodeText)

	_ = validate.RegisterValidation(twoDecimalsTag, func(fl validator.FieldLevel) bool {
		cents := fl.Field().Float() * 100
		return math.Abs(cents-math.Round(cents)) < 1e-6
	})
	core.RegisterCustomTranslation(validate, translator, twoDecimalsTag, twoDecimalsText)

	validate.RegisterStructValidation(assignmentStructValidation, Assignment{})
	core.RegisterCustomTranslation(validate, translator, studentStateTag, studentStateText)
	core.RegisterCustomTranslation(validate, translator, noteStateTag, noteStateText)
}

// assignmentStructValidation checks the fields that depend on the lifecycle state.
func assignmentStructValidation(sl validator.StructLevel) {
	a := sl.Current().Interface().(Assignment)
	state := a.State
	if state == "" {
		state = StateUnassigned
	}
	if state.HasStudent() != (a.Student != "") {
		sl.ReportError(a.Student, "student", "Student", studentStateTag, "")
	}
	if (state == StateOver) != (a.Note != "") {
		sl.ReportError(a.Note, "note", "Note", noteStateTag, "")
	}
}
