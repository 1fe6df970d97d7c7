package assignment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/user"
	emailsvc "github.com/foureyes/bando/services/email"
	dummydb "github.com/foureyes/bando/storage/database/dummy"
	testutil "github.com/foureyes/bando/tests"
)

const (
	protocol  = "Prot. n. 1"
	student   = "m.rossi1@studenti.unisa.it"
	other     = "l.verdi2@studenti.unisa.it"
	professor = "bianchi@unisa.it"
)

type fixture struct {
	db      *dummydb.DB
	repo    assignment.Repository
	users   user.Repository
	svc     assignment.Service
	mailSvc *emailsvc.ConsoleServiceMock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	conf := testutil.Config()
	logger := testutil.Logger()
	validate, _ := testutil.Validator()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	repo := dummydb.NewAssignmentRepository(db)
	users := dummydb.NewUserRepository(db)
	testutil.CreateUser(t, users, student, "Mario", "Rossi", user.RoleStudent, "")
	testutil.CreateUser(t, users, other, "Luca", "Verdi", user.RoleStudent, "")
	testutil.CreateUser(t, users, professor, "Carlo", "Bianchi", user.RoleProfessor, "")

	return fixture{
		db:      db,
		repo:    repo,
		users:   users,
		svc:     assignment.NewService(repo, users, validate, mailSvc, logger),
		mailSvc: mailSvc,
	}
}

func (f fixture) create(t *testing.T, code string) assignment.Assignment {
	t.Helper()
	a := testutil.NewAssignment(code)
	a.NoticeProtocol = protocol
	a, err := f.repo.Create(context.Background(), a)
	require.NoError(t, err)
	return a
}

func byID(a assignment.Assignment) assignment.Ref { return assignment.Ref{ID: a.ID} }

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "TUT/1")

	a, err := f.svc.SendRequest(ctx, byID(a), " M.Rossi1@studenti.unisa.it ")
	require.NoError(t, err)
	assert.Equal(t, assignment.StateWaiting, a.State)
	assert.Equal(t, student, a.Student)

	a, err = f.svc.Book(ctx, assignment.Ref{NoticeProtocol: protocol, Code: "TUT/1"}, student)
	require.NoError(t, err)
	assert.Equal(t, assignment.StateBooked, a.State)

	a, err = f.svc.Assign(ctx, byID(a))
	require.NoError(t, err)
	assert.Equal(t, assignment.StateAssigned, a.State)

	a, err = f.svc.Close(ctx, byID(a), "done, well done")
	require.NoError(t, err)
	assert.Equal(t, assignment.StateOver, a.State)
	assert.Equal(t, "done, well done", a.Note)
	assert.Equal(t, student, a.Student)

	stored, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, stored)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 4)
	for _, msg := range sent {
		assert.Equal(t, student, msg.To[0].Address)
	}
	assert.Equal(t, "Assignment TUT/1 is now Over", sent[3].Subject)
}

func TestService_Decline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "TUT/1")

	_, err := f.svc.SendRequest(ctx, byID(a), student)
	require.NoError(t, err)

	_, err = f.svc.Decline(ctx, byID(a), other)
	assert.True(t, core.IsValidation(err), "got %v", err)

	a, err = f.svc.Decline(ctx, byID(a), student)
	require.NoError(t, err)
	assert.Equal(t, assignment.StateUnassigned, a.State)
	assert.Empty(t, a.Student)

	// the student who declined is still told about it
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, student, sent[1].To[0].Address)

	// it may be offered again
	a, err = f.svc.SendRequest(ctx, byID(a), other)
	require.NoError(t, err)
	assert.Equal(t, other, a.Student)
}

func TestService_Transitions(t *testing.T) {
	ctx := context.Background()

	// each op is tried from every state but the one it requires
	ops := map[string]struct {
		from assignment.State
		run  func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error)
	}{
		"send request": {assignment.StateUnassigned, func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error) {
			return svc.SendRequest(ctx, ref, student)
		}},
		"book": {assignment.StateWaiting, func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error) {
			return svc.Book(ctx, ref, "")
		}},
		"assign": {assignment.StateBooked, func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error) {
			return svc.Assign(ctx, ref)
		}},
		"decline": {assignment.StateWaiting, func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error) {
			return svc.Decline(ctx, ref, "")
		}},
		"close": {assignment.StateAssigned, func(svc assignment.Service, ref assignment.Ref) (assignment.Assignment, error) {
			return svc.Close(ctx, ref, "note")
		}},
	}

	for name, op := range ops {
		for _, state := range assignment.States {
			if state == op.from {
				continue
			}
			t.Run(name+" from "+string(state), func(t *testing.T) {
				f := newFixture(t)
				a := testutil.NewAssignment("TUT/1")
				a.NoticeProtocol = protocol
				a.State = state
				if state.HasStudent() {
					a.Student = student
				}
				a, err := f.repo.Create(ctx, a)
				require.NoError(t, err)

				_, err = op.run(f.svc, byID(a))
				require.True(t, assignment.IsTransitionError(err), "got %v", err)
				assert.False(t, core.IsPersistence(err))
				var trErr *assignment.TransitionError
				require.ErrorAs(t, err, &trErr)
				assert.Equal(t, state, trErr.Current)
				assert.Equal(t, op.from, trErr.Required)
				assert.False(t, trErr.Concurrent)

				stored, err := f.repo.Get(ctx, a.ID)
				require.NoError(t, err)
				assert.Equal(t, state, stored.State)
				assert.Empty(t, f.mailSvc.SentMessages())
			})
		}
	}
}

func TestService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "TUT/1")

	_, err := f.svc.SendRequest(ctx, assignment.Ref{}, student)
	assert.True(t, core.IsValidation(err), "got %v", err)

	_, err = f.svc.SendRequest(ctx, byID(a), "not an email")
	assert.True(t, core.IsValidation(err), "got %v", err)

	_, err = f.svc.SendRequest(ctx, byID(a), "g.neri9@studenti.unisa.it")
	assert.True(t, core.IsValidation(err), "unknown student: got %v", err)

	_, err = f.svc.SendRequest(ctx, byID(a), professor)
	assert.True(t, core.IsValidation(err), "not a student: got %v", err)

	got, err := f.repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StateUnassigned, got.State)
	assert.Empty(t, got.Student)

	_, err = f.svc.SendRequest(ctx, assignment.Ref{ID: 404}, student)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	_, err = f.svc.SendRequest(ctx, assignment.Ref{NoticeProtocol: protocol, Code: "TUT/9"}, student)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	_, err = f.svc.Close(ctx, byID(a), " ")
	assert.True(t, core.IsValidation(err), "got %v", err)

	f.db.FailOn("assignments.Transition", errors.New("disk on fire"))
	_, err = f.svc.SendRequest(ctx, byID(a), student)
	assert.True(t, core.IsPersistence(err), "got %v", err)
	assert.False(t, assignment.IsTransitionError(err))
}

// staleRepository reports that another request moved the assignment first.
type staleRepository struct {
	assignment.Repository
}

func (staleRepository) Transition(context.Context, int64, assignment.State, assignment.Assignment, ...core.DBExecutor) (bool, error) {
	return false, nil
}

func TestService_ConcurrentChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "TUT/1")
	validate, _ := testutil.Validator()
	svc := assignment.NewService(staleRepository{f.repo}, f.users, validate, f.mailSvc, testutil.Logger())

	_, err := svc.SendRequest(ctx, byID(a), student)
	var trErr *assignment.TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.True(t, trErr.Concurrent)
	assert.Empty(t, f.mailSvc.SentMessages())
}

func TestService_RacingBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "TUT/1")
	_, err := f.svc.SendRequest(ctx, byID(a), student)
	require.NoError(t, err)
	f.mailSvc.Reset()

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Book(ctx, byID(a), student)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			oks++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	require.Len(t, errs, n-1)
	for _, err := range errs {
		assert.True(t, assignment.IsTransitionError(err), "got %v", err)
	}
	assert.Len(t, f.mailSvc.SentMessages(), 1)
}

func TestService_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, "TUT/1")
	f.create(t, "TUT/2")
	_, err := f.svc.SendRequest(ctx, byID(first), student)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter assignment.Filter
		want   int
	}{
		{"all", assignment.Filter{}, 2},
		{"by notice", assignment.Filter{NoticeProtocol: protocol}, 2},
		{"by code", assignment.Filter{Code: "TUT/2"}, 1},
		{"by state", assignment.Filter{State: assignment.StateWaiting}, 1},
		{"by student", assignment.Filter{Student: "M.Rossi1@studenti.unisa.it"}, 1},
		{"no match", assignment.Filter{NoticeProtocol: "Prot. n. 2"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.Search(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}

	_, err = f.svc.Search(ctx, assignment.Filter{State: "Lost"})
	assert.True(t, core.IsValidation(err), "got %v", err)
}
