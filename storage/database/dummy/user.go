package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) Create(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("users.Create"); err != nil {
		return user.User{}, err
	}

	if _, ok := repo.db.users[usr.Email]; ok {
		return user.User{}, core.NewConflictError("user", usr.Email)
	}
	repo.db.users[usr.Email] = usr
	return usr, nil
}

func (repo *userRepository) Get(_ context.Context, email string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("users.Get"); err != nil {
		return user.User{}, err
	}

	if usr, ok := repo.db.users[email]; ok {
		return usr, nil
	}
	return user.User{}, core.NewNotFoundError("user", email)
}

func (repo *userRepository) Query(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("users.Query"); err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter.Name != "" && !strings.HasPrefix(strings.ToLower(u.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.Surname != "" && !strings.HasPrefix(strings.ToLower(u.Surname), strings.ToLower(filter.Surname)) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Verified != nil && u.Verified != *filter.Verified {
			continue
		}
		users = append(users, u)
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	for k := len(ordering) - 1; k >= 0; k-- {
		ord := ordering[k]
		less := userLess(ord.Field)
		if less == nil {
			continue
		}
		sort.SliceStable(users, func(i, j int) bool {
			if ord.Ascending {
				return less(users[i], users[j])
			}
			return less(users[j], users[i])
		})
	}
	return users, nil
}

func userLess(field string) func(a, b user.User) bool {
	switch field {
	case "email":
		return func(a, b user.User) bool { return a.Email < b.Email }
	case "name":
		return func(a, b user.User) bool { return a.Name < b.Name }
	case "surname":
		return func(a, b user.User) bool { return a.Surname < b.Surname }
	case "role":
		return func(a, b user.User) bool { return a.Role < b.Role }
	case "created_at":
		return func(a, b user.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b user.User) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	return nil
}

func (repo *userRepository) Update(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("users.Update"); err != nil {
		return user.User{}, err
	}

	orig, ok := repo.db.users[usr.Email]
	if !ok {
		return user.User{}, core.NewNotFoundError("user", usr.Email)
	}
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.Email] = usr
	return usr, nil
}

func (repo *userRepository) Delete(_ context.Context, emails []string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("users.Delete"); err != nil {
		return 0, err
	}

	for _, a := range repo.db.assignments {
		for _, email := range emails {
			if a.Student == email {
				return 0, &core.ConflictError{Entity: "user", Key: email, Reason: user.BoundReason}
			}
		}
	}

	var n int64
	for _, email := range emails {
		if _, ok := repo.db.users[email]; ok {
			delete(repo.db.users, email)
			repo.db.removeStudentRecords(email)
			n++
		}
	}
	return n, nil
}

// removeStudentRecords drops the ratings and candidatures of student. The lock must be held.
func (db *DB) removeStudentRecords(student string) {
	for k := range db.ratings {
		if k.Student == student {
			delete(db.ratings, k)
		}
	}
	for k := range db.candidatures {
		if k.Student == student {
			db.removeCandidature(k)
		}
	}
}
