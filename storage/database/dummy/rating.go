package dummydb

import (
	"context"
	"fmt"
	"sort"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
)

type ratingRepository struct {
	db *DB
}

var _ rating.Repository = (*ratingRepository)(nil) // interface compliance check

func NewRatingRepository(db *DB) rating.Repository {
	return &ratingRepository{db: db}
}

func ratingKey(k rating.Key) string {
	return fmt.Sprintf("%s #%d", k.Student, k.AssignmentID)
}

// stored drops everything but the email of the student, like the SQL store.
func stored(r rating.Rating) rating.Rating {
	r.Student = user.User{Email: r.Student.Email}
	return r
}

func (repo *ratingRepository) Create(_ context.Context, r rating.Rating, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("ratings.Create"); err != nil {
		return err
	}

	if _, ok := repo.db.ratings[r.Key()]; ok {
		return core.NewConflictError("rating", ratingKey(r.Key()))
	}
	repo.db.ratings[r.Key()] = stored(r)
	return nil
}

func (repo *ratingRepository) Update(_ context.Context, r rating.Rating, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("ratings.Update"); err != nil {
		return err
	}

	if _, ok := repo.db.ratings[r.Key()]; !ok {
		return core.NewNotFoundError("rating", ratingKey(r.Key()))
	}
	repo.db.ratings[r.Key()] = stored(r)
	return nil
}

func (repo *ratingRepository) Remove(_ context.Context, key rating.Key, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("ratings.Remove"); err != nil {
		return false, err
	}

	if _, ok := repo.db.ratings[key]; !ok {
		return false, nil
	}
	delete(repo.db.ratings, key)
	return true, nil
}

func (repo *ratingRepository) Exists(_ context.Context, key rating.Key, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("ratings.Exists"); err != nil {
		return false, err
	}

	_, ok := repo.db.ratings[key]
	return ok, nil
}

func (repo *ratingRepository) Get(_ context.Context, key rating.Key, _ ...core.DBExecutor) (rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("ratings.Get"); err != nil {
		return rating.Rating{}, err
	}

	if r, ok := repo.db.ratings[key]; ok {
		return r, nil
	}
	return rating.Rating{}, core.NewNotFoundError("rating", ratingKey(key))
}

func (repo *ratingRepository) find(op string, keep func(rating.Rating) bool) ([]rating.Rating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault(op); err != nil {
		return nil, err
	}

	ratings := make([]rating.Rating, 0)
	for _, r := range repo.db.ratings {
		if keep(r) {
			ratings = append(ratings, r)
		}
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].AssignmentID != ratings[j].AssignmentID {
			return ratings[i].AssignmentID < ratings[j].AssignmentID
		}
		return ratings[i].Student.Email < ratings[j].Student.Email
	})
	return ratings, nil
}

func (repo *ratingRepository) FindByStudent(_ context.Context, student string, _ ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.find("ratings.FindByStudent", func(r rating.Rating) bool { return r.Student.Email == student })
}

func (repo *ratingRepository) FindByAssignment(_ context.Context, assignmentID int64, _ ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.find("ratings.FindByAssignment", func(r rating.Rating) bool { return r.AssignmentID == assignmentID })
}

func (repo *ratingRepository) FindByProtocol(_ context.Context, protocol string, _ ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.find("ratings.FindByProtocol", func(r rating.Rating) bool {
		a, ok := repo.db.assignments[r.AssignmentID]
		return ok && a.NoticeProtocol == protocol
	})
}

func (repo *ratingRepository) RemoveByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("ratings.RemoveByNotice"); err != nil {
		return 0, err
	}

	var n int64
	for k := range repo.db.ratings {
		if a, ok := repo.db.assignments[k.AssignmentID]; ok && a.NoticeProtocol == protocol {
			delete(repo.db.ratings, k)
			n++
		}
	}
	return n, nil
}
