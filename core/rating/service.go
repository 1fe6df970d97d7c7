package rating

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/foureyes/bando/core"
)

const hydrationLimit = 8

type (
	Service interface {
		Create(ctx context.Context, s Score) (Rating, error)
		// Update requires the rating to exist.
		Update(ctx context.Context, s Score) (Rating, error)
		Remove(ctx context.Context, key Key) (bool, error)
		Exists(ctx context.Context, key Key) (bool, error)
		Get(ctx context.Context, key Key) (Rating, error)
		FindByStudent(ctx context.Context, student string) ([]Rating, error)
		FindByAssignment(ctx context.Context, assignmentID int64) ([]Rating, error)
		FindByProtocol(ctx context.Context, protocol string) ([]Rating, error)
	}

	service struct {
		repo        Repository
		assignments AssignmentGetter
		users       UserGetter
		validate    *validator.Validate
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	assignments AssignmentGetter,
	users UserGetter,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		assignments: assignments,
		users:       users,
		validate:    validate,
		logger:      logger,
	}
}

func (svc *service) check(ctx context.Context, s *Score) error {
	s.Student = core.CleanString(s.Student, true /* lower */)
	if err := svc.validate.Struct(s); err != nil {
		return core.NewValidationError(err)
	}

	usr, err := svc.users.Get(ctx, s.Student)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "student", Error: "unknown student"})
		}
		return errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return core.NewValidationError(nil, core.FieldError{Field: "student", Error: "only students can be rated"})
	}
	if _, err = svc.assignments.Get(ctx, s.AssignmentID); err != nil {
		return errors.Wrap(err, "finding assignment")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, s Score) (Rating, error) {
	if err := svc.check(ctx, &s); err != nil {
		return Rating{}, err
	}
	r := s.rating()
	if err := svc.repo.Create(ctx, r); err != nil {
		return Rating{}, errors.Wrap(err, "creating rating")
	}
	return svc.Get(ctx, r.Key())
}

func (svc *service) Update(ctx context.Context, s Score) (Rating, error) {
	if err := svc.check(ctx, &s); err != nil {
		return Rating{}, err
	}
	r := s.rating()
	exists, err := svc.repo.Exists(ctx, r.Key())
	if err != nil {
		return Rating{}, errors.Wrap(err, "checking rating")
	}
	if !exists {
		return Rating{}, core.NewNotFoundError("rating", fmt.Sprintf("%s/%d", r.Student.Email, r.AssignmentID))
	}
	if err = svc.repo.Update(ctx, r); err != nil {
		return Rating{}, errors.Wrap(err, "updating rating")
	}
	return svc.Get(ctx, r.Key())
}

func (svc *service) Remove(ctx context.Context, key Key) (bool, error) {
	key.Student = core.CleanString(key.Student, true /* lower */)
	return svc.repo.Remove(ctx, key)
}

func (svc *service) Exists(ctx context.Context, key Key) (bool, error) {
	key.Student = core.CleanString(key.Student, true /* lower */)
	return svc.repo.Exists(ctx, key)
}

func (svc *service) Get(ctx context.Context, key Key) (Rating, error) {
	key.Student = core.CleanString(key.Student, true /* lower */)
	r, err := svc.repo.Get(ctx, key)
	if err != nil {
		return Rating{}, err
	}
	ratings := []Rating{r}
	svc.hydrate(ctx, ratings)
	return ratings[0], nil
}

func (svc *service) FindByStudent(ctx context.Context, student string) ([]Rating, error) {
	ratings, err := svc.repo.FindByStudent(ctx, core.CleanString(student, true /* lower */))
	if err != nil {
		return nil, err
	}
	svc.hydrate(ctx, ratings)
	return ratings, nil
}

func (svc *service) FindByAssignment(ctx context.Context, assignmentID int64) ([]Rating, error) {
	ratings, err := svc.repo.FindByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	svc.hydrate(ctx, ratings)
	return ratings, nil
}

func (svc *service) FindByProtocol(ctx context.Context, protocol string) ([]Rating, error) {
	ratings, err := svc.repo.FindByProtocol(ctx, core.CleanString(protocol))
	if err != nil {
		return nil, err
	}
	svc.hydrate(ctx, ratings)
	return ratings, nil
}

// hydrate replaces the stored student emails by the full students, in place.
// A student that cannot be loaded keeps only its email.
func (svc *service) hydrate(ctx context.Context, ratings []Rating) {
	var g errgroup.Group
	g.SetLimit(hydrationLimit)
	for i := range ratings {
		r := &ratings[i]
		g.Go(func() error {
			usr, err := svc.users.Get(ctx, r.Student.Email)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("hydrating rating: loading student %q", r.Student.Email), err)
				return nil
			}
			r.Student = usr
			return nil
		})
	}
	_ = g.Wait()
}
