package rating_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
	dummydb "github.com/foureyes/bando/storage/database/dummy"
	testutil "github.com/foureyes/bando/tests"
)

const (
	protocol  = "Prot. n. 1"
	student   = "m.rossi1@studenti.unisa.it"
	professor = "bianchi@unisa.it"
)

type fixture struct {
	db         *dummydb.DB
	svc        rating.Service
	assignment assignment.Assignment
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	users := dummydb.NewUserRepository(db)
	assignments := dummydb.NewAssignmentRepository(db)
	validate, _ := testutil.Validator()

	testutil.CreateUser(t, users, student, "Mario", "Rossi", user.RoleStudent, "")
	testutil.CreateUser(t, users, professor, "Anna", "Bianchi", user.RoleProfessor, "")
	a := testutil.NewAssignment("TUT/1")
	a.NoticeProtocol = protocol
	a, err = assignments.Create(context.Background(), a)
	require.NoError(t, err)

	svc := rating.NewService(dummydb.NewRatingRepository(db), assignments, users, validate, testutil.Logger())
	return fixture{db: db, svc: svc, assignment: a}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, rating.Score{
		Student:        "M.Rossi1@studenti.unisa.it",
		AssignmentID:   f.assignment.ID,
		TitlesScore:    12,
		InterviewScore: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, student, r.Student.Email)
	assert.Equal(t, "Mario", r.Student.Name)
	assert.Equal(t, 27, r.Total())

	tests := []struct {
		name  string
		score rating.Score
		check func(error) bool
	}{
		{"already rated", rating.Score{Student: student, AssignmentID: f.assignment.ID}, core.IsConflict},
		{"unknown student", rating.Score{Student: "x.nobody@studenti.unisa.it", AssignmentID: f.assignment.ID}, core.IsValidation},
		{"not a student", rating.Score{Student: professor, AssignmentID: f.assignment.ID}, core.IsValidation},
		{"unknown assignment", rating.Score{Student: student, AssignmentID: 404}, core.IsNotFound},
		{"negative score", rating.Score{Student: student, AssignmentID: f.assignment.ID, TitlesScore: -1}, core.IsValidation},
		{"no assignment", rating.Score{Student: student}, core.IsValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.score)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	score := rating.Score{Student: student, AssignmentID: f.assignment.ID, TitlesScore: 1, InterviewScore: 2}

	_, err := f.svc.Update(ctx, score)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	_, err = f.svc.Create(ctx, score)
	require.NoError(t, err)
	score.InterviewScore = 20
	r, err := f.svc.Update(ctx, score)
	require.NoError(t, err)
	assert.Equal(t, 20, r.InterviewScore)
	assert.Equal(t, 21, r.Total())
}

func TestService_Finders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, rating.Score{Student: student, AssignmentID: f.assignment.ID, TitlesScore: 3})
	require.NoError(t, err)
	key := rating.Key{Student: student, AssignmentID: f.assignment.ID}

	exists, err := f.svc.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	for name, find := range map[string]func() ([]rating.Rating, error){
		"by student":    func() ([]rating.Rating, error) { return f.svc.FindByStudent(ctx, student) },
		"by assignment": func() ([]rating.Rating, error) { return f.svc.FindByAssignment(ctx, f.assignment.ID) },
		"by protocol":   func() ([]rating.Rating, error) { return f.svc.FindByProtocol(ctx, protocol) },
	} {
		t.Run(name, func(t *testing.T) {
			ratings, err := find()
			require.NoError(t, err)
			require.Len(t, ratings, 1)
			assert.Equal(t, "Rossi", ratings[0].Student.Surname)
		})
	}

	// a student that cannot be loaded keeps its email
	f.db.FailOn("users.Get", errors.New("disk on fire"))
	ratings, err := f.svc.FindByProtocol(ctx, protocol)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, student, ratings[0].Student.Email)
	assert.Empty(t, ratings[0].Student.Name)
	f.db.FailOn("users.Get", nil)

	removed, err := f.svc.Remove(ctx, key)
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = f.svc.Get(ctx, key)
	assert.True(t, core.IsNotFound(err), "got %v", err)
}
