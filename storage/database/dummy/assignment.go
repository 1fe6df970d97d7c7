package dummydb

import (
	"context"
	"sort"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

// removeAssignment deletes an assignment with its ratings. The lock must be held.
func (db *DB) removeAssignment(id int64) {
	delete(db.assignments, id)
	for k := range db.ratings {
		if k.AssignmentID == id {
			delete(db.ratings, k)
		}
	}
}

func (repo *assignmentRepository) Create(_ context.Context, a assignment.Assignment, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("assignments.Create"); err != nil {
		return assignment.Assignment{}, err
	}

	for _, other := range repo.db.assignments {
		if other.NoticeProtocol == a.NoticeProtocol && other.Code == a.Code {
			return assignment.Assignment{}, core.NewConflictError("assignment", a.NoticeProtocol+" "+a.Code)
		}
	}
	if a.State == "" {
		a.State = assignment.StateUnassigned
	}
	repo.db.assignmentSeq++
	a.ID = repo.db.assignmentSeq
	repo.db.assignments[a.ID] = a
	return a, nil
}

func (repo *assignmentRepository) Update(_ context.Context, a assignment.Assignment, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("assignments.Update"); err != nil {
		return err
	}

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return core.NewNotFoundError("assignment", itoa(a.ID))
	}
	a.NoticeProtocol = orig.NoticeProtocol
	repo.db.assignments[a.ID] = a
	return nil
}

func (repo *assignmentRepository) Remove(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("assignments.Remove"); err != nil {
		return err
	}

	if _, ok := repo.db.assignments[id]; !ok {
		return core.NewNotFoundError("assignment", itoa(id))
	}
	repo.db.removeAssignment(id)
	return nil
}

func (repo *assignmentRepository) Get(_ context.Context, id int64, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("assignments.Get"); err != nil {
		return assignment.Assignment{}, err
	}

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, core.NewNotFoundError("assignment", itoa(id))
}

func (repo *assignmentRepository) GetByCode(_ context.Context, protocol, code string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("assignments.GetByCode"); err != nil {
		return assignment.Assignment{}, err
	}

	for _, a := range repo.db.assignments {
		if a.NoticeProtocol == protocol && a.Code == code {
			return a, nil
		}
	}
	return assignment.Assignment{}, core.NewNotFoundError("assignment", protocol+" "+code)
}

func (repo *assignmentRepository) FindByNotice(ctx context.Context, protocol string, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("assignments.FindByNotice"); err != nil {
		return nil, err
	}
	return repo.search(assignment.Filter{NoticeProtocol: protocol}), nil
}

func (repo *assignmentRepository) Search(_ context.Context, filter assignment.Filter, _ ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("assignments.Search"); err != nil {
		return nil, err
	}
	return repo.search(filter), nil
}

func (repo *assignmentRepository) search(filter assignment.Filter) []assignment.Assignment {
	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if filter.Code != "" && a.Code != filter.Code {
			continue
		}
		if filter.NoticeProtocol != "" && a.NoticeProtocol != filter.NoticeProtocol {
			continue
		}
		if filter.State != "" && a.State != filter.State {
			continue
		}
		if filter.Student != "" && a.Student != filter.Student {
			continue
		}
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments
}

func (repo *assignmentRepository) Transition(
	_ context.Context,
	id int64,
	from assignment.State,
	next assignment.Assignment,
	_ ...core.DBExecutor,
) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("assignments.Transition"); err != nil {
		return false, err
	}

	curr, ok := repo.db.assignments[id]
	if !ok || curr.State != from {
		return false, nil
	}
	curr.State = next.State
	curr.Student = next.Student
	curr.Note = next.Note
	repo.db.assignments[id] = curr
	return true, nil
}

func (repo *assignmentRepository) RemoveByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("assignments.RemoveByNotice"); err != nil {
		return 0, err
	}

	var n int64
	for id, a := range repo.db.assignments {
		if a.NoticeProtocol == protocol {
			repo.db.removeAssignment(id)
			n++
		}
	}
	return n, nil
}
