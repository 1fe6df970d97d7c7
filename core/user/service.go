package user

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/foureyes/bando/core"
)

// ErrInvalidCredentials is returned by Authenticate for unknown users and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// BoundReason explains the *core.ConflictError returned when deleting a student bound to an assignment.
const BoundReason = "is still bound to an assignment"

type (
	Repository interface {
		// Create fails with *core.ConflictError when the email is taken.
		Create(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// Get fails with *core.NotFoundError.
		Get(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// Query applies AND on the QueryFilter fields. An empty filter returns every user.
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		// Update overwrites every column but the email and created_at.
		Update(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// Delete returns the number of deleted users. It deletes nothing and fails with
		// *core.ConflictError when one of them is still the student of an assignment.
		Delete(ctx context.Context, emails []string, exec ...core.DBExecutor) (int64, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		Get(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, email string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, emails ...string) (int64, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		Email:     nu.Email,
		Name:      nu.Name,
		Surname:   nu.Surname,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Role == RoleStudent {
		usr.RegistrationNumber = nu.RegistrationNumber
		usr.BirthDate = nu.BirthDate
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.Create(ctx, usr)
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.Get(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, pkgerrors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) Get(ctx context.Context, email string) (User, error) {
	return svc.repo.Get(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.Query(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, email string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.Get(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return User{}, err
	}

	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Surname != "" {
		usr.Surname = uu.Surname
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.Verified != nil {
		usr.Verified = *uu.Verified
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, emails ...string) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		cleaned = append(cleaned, core.CleanString(e, true /* lower */))
	}
	return svc.repo.Delete(ctx, cleaned)
}
