package assignment

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

var errRefRequired = errors.New("an assignment id, or a notice protocol and a code, is required")

// TransitionError is returned when an assignment is not in the state an operation requires.
// It is never a storage failure: those come back as *core.PersistenceError.
type TransitionError struct {
	Op       string
	Ref      Ref
	Current  State
	Required State
	// Concurrent is set when the state changed between the check and the write.
	Concurrent bool
}

func (e TransitionError) Error() string {
	if e.Concurrent {
		return fmt.Sprintf("cannot %s assignment %s: it changed concurrently", e.Op, e.Ref)
	}
	return fmt.Sprintf("cannot %s assignment %s: it is %s, it must be %s", e.Op, e.Ref, e.Current, e.Required)
}

func IsTransitionError(err error) bool {
	_, ok := errors.Cause(err).(*TransitionError)
	return ok
}

type transition struct {
	op   string
	from State
	to   State
}

var (
	sendRequestTransition = transition{op: "send request for", from: StateUnassigned, to: StateWaiting}
	bookTransition        = transition{op: "book", from: StateWaiting, to: StateBooked}
	assignTransition      = transition{op: "assign", from: StateBooked, to: StateAssigned}
	declineTransition     = transition{op: "decline", from: StateWaiting, to: StateUnassigned}
	closeTransition       = transition{op: "close", from: StateAssigned, to: StateOver}
)

type (
	// Service drives assignments through their lifecycle.
	Service interface {
		// SendRequest offers an Unassigned assignment to student; it becomes Waiting.
		// student must be the email of a user with the Student role.
		SendRequest(ctx context.Context, ref Ref, student string) (Assignment, error)
		// Book accepts a Waiting assignment; it becomes Booked.
		// When student is not empty it must be the student the assignment was offered to.
		Book(ctx context.Context, ref Ref, student string) (Assignment, error)
		// Assign confirms a Booked assignment; it becomes Assigned.
		Assign(ctx context.Context, ref Ref) (Assignment, error)
		// Decline refuses a Waiting assignment; it goes back to Unassigned and loses its student.
		// When student is not empty it must be the student the assignment was offered to.
		Decline(ctx context.Context, ref Ref, student string) (Assignment, error)
		// Close ends an Assigned assignment with a note; it becomes Over.
		Close(ctx context.Context, ref Ref, note string) (Assignment, error)

		Get(ctx context.Context, id int64) (Assignment, error)
		Search(ctx context.Context, filter Filter) ([]Assignment, error)
	}

	// UserGetter is the part of the user store the lifecycle needs.
	UserGetter interface {
		Get(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error)
	}

	service struct {
		repo     Repository
		users    UserGetter
		validate *validator.Validate
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	users UserGetter,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		users:    users,
		validate: validate,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func (svc *service) SendRequest(ctx context.Context, ref Ref, student string) (Assignment, error) {
	student = core.CleanString(student, true /* lower */)
	if err := svc.validate.Var(student, "required,email"); err != nil {
		return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "student", Error: "a valid student email is required"})
	}
	if err := svc.checkStudent(ctx, student); err != nil {
		return Assignment{}, err
	}
	return svc.transit(ctx, sendRequestTransition, ref, nil, func(a *Assignment) {
		a.Student = student
	})
}

func (svc *service) checkStudent(ctx context.Context, email string) error {
	usr, err := svc.users.Get(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "student", Error: "unknown student"})
		}
		return errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return core.NewValidationError(nil, core.FieldError{Field: "student", Error: "assignments can only be offered to students"})
	}
	return nil
}

func (svc *service) Book(ctx context.Context, ref Ref, student string) (Assignment, error) {
	return svc.transit(ctx, bookTransition, ref, boundTo(student), nil)
}

func (svc *service) Assign(ctx context.Context, ref Ref) (Assignment, error) {
	return svc.transit(ctx, assignTransition, ref, nil, nil)
}

func (svc *service) Decline(ctx context.Context, ref Ref, student string) (Assignment, error) {
	return svc.transit(ctx, declineTransition, ref, boundTo(student), func(a *Assignment) {
		a.Student = ""
	})
}

func (svc *service) Close(ctx context.Context, ref Ref, note string) (Assignment, error) {
	note = core.CleanString(note)
	if err := svc.validate.Var(note, "required,max=500"); err != nil {
		return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "note", Error: "a note of at most 500 characters is required"})
	}
	return svc.transit(ctx, closeTransition, ref, nil, func(a *Assignment) {
		a.Note = note
	})
}

func (svc *service) Get(ctx context.Context, id int64) (Assignment, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *service) Search(ctx context.Context, filter Filter) ([]Assignment, error) {
	filter.Clean()
	if filter.State != "" {
		if _, ok := ParseState(string(filter.State)); !ok {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "state", Error: "unknown assignment state"})
		}
	}
	return svc.repo.Search(ctx, filter)
}

func (svc *service) resolve(ctx context.Context, ref Ref) (Assignment, error) {
	if ref.IsZero() {
		return Assignment{}, core.NewValidationError(errRefRequired, core.FieldError{Field: "id", Error: errRefRequired.Error()})
	}
	if ref.ID != 0 {
		return svc.repo.Get(ctx, ref.ID)
	}
	return svc.repo.GetByCode(ctx, ref.NoticeProtocol, ref.Code)
}

// transit checks the current state, then writes the next one with a single conditional update.
func (svc *service) transit(
	ctx context.Context,
	tr transition,
	ref Ref,
	check func(Assignment) error,
	mutate func(*Assignment),
) (Assignment, error) {
	curr, err := svc.resolve(ctx, ref)
	if err != nil {
		return Assignment{}, err
	}
	if curr.State != tr.from {
		return Assignment{}, &TransitionError{Op: tr.op, Ref: ref, Current: curr.State, Required: tr.from}
	}
	if check != nil {
		if err = check(curr); err != nil {
			return Assignment{}, err
		}
	}

	next := curr
	next.State = tr.to
	if mutate != nil {
		mutate(&next)
	}

	changed, err := svc.repo.Transition(ctx, curr.ID, tr.from, next)
	if err != nil {
		return Assignment{}, errors.Wrapf(err, "%s assignment %s", tr.op, ref)
	}
	if !changed {
		return Assignment{}, &TransitionError{Op: tr.op, Ref: ref, Current: curr.State, Required: tr.from, Concurrent: true}
	}

	svc.notify(curr, next)
	return next, nil
}

func boundTo(student string) func(Assignment) error {
	student = core.CleanString(student, true /* lower */)
	return func(a Assignment) error {
		if student != "" && a.Student != student {
			return core.NewValidationError(
				errors.New("assignment offered to another student"),
				core.FieldError{Field: "student", Error: "this assignment was offered to another student"},
			)
		}
		return nil
	}
}

// notify tells the student concerned about the new state. It does not wait for delivery.
func (svc *service) notify(prev, next Assignment) {
	to := next.Student
	if to == "" {
		to = prev.Student
	}
	if to == "" || svc.mailSvc == nil {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: to}},
		Subject:      fmt.Sprintf("Assignment %s is now %s", next.Code, next.State),
		BodyStr:      fmt.Sprintf("Assignment %s of notice %s is now %s.", next.Code, next.NoticeProtocol, next.State),
		TemplateName: "assignment_status",
		TemplateData: next,
	})
	svc.logger.Debug(fmt.Sprintf("notified %s: assignment %d is %s", to, next.ID, next.State))
}
