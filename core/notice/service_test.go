package notice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/reconcile"
	"github.com/foureyes/bando/core/user"
	emailsvc "github.com/foureyes/bando/services/email"
	dummydb "github.com/foureyes/bando/storage/database/dummy"
	testutil "github.com/foureyes/bando/tests"
)

const (
	protocol = "Prot. n. 1"
	referent = "bianchi@unisa.it"
)

var errDiskOnFire = errors.New("disk on fire")

type fixture struct {
	db      *dummydb.DB
	svc     notice.Service
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

	svc := notice.NewService(dummydb.NoticeRepositories(db), dummydb.NewTransactor(db), validate, mailSvc, logger)
	return fixture{db: db, svc: svc, mailSvc: mailSvc}
}

func (f fixture) create(t *testing.T, articles, criteria, assignments int) notice.Notice {
	t.Helper()
	nn := testutil.NewNotice(protocol, articles, criteria, assignments)
	nn.ReferentProfessor = referent
	n, err := f.svc.Create(context.Background(), nn)
	require.NoError(t, err)
	return n
}

func initials(articles []notice.Article) []string {
	keys := make([]string, 0, len(articles))
	for _, a := range articles {
		keys = append(keys, a.Initial)
	}
	return keys
}

func codes(assignments []assignment.Assignment) []string {
	keys := make([]string, 0, len(assignments))
	for _, a := range assignments {
		keys = append(keys, a.Code)
	}
	return keys
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nn := testutil.NewNotice(protocol, 2, 3, 2)
	nn.Protocol = "  " + protocol + " "
	nn.State = ""
	// lifecycle fields of a payload are ignored
	nn.Assignments[0].State = assignment.StateBooked
	nn.Assignments[0].Student = "m.rossi1@studenti.unisa.it"

	n, err := f.svc.Create(ctx, nn)
	require.NoError(t, err)
	assert.Equal(t, protocol, n.Protocol)
	assert.Equal(t, notice.StateDraft, n.State)
	assert.True(t, n.Complete())
	assert.ElementsMatch(t, []string{"Art A", "Art B"}, initials(n.Articles))
	assert.Len(t, n.EvaluationCriteria, 3)
	require.Len(t, n.Assignments, 2)
	for _, a := range n.Assignments {
		assert.NotZero(t, a.ID)
		assert.Equal(t, assignment.StateUnassigned, a.State)
		assert.Empty(t, a.Student)
		assert.Equal(t, protocol, a.NoticeProtocol)
	}
	require.NotNil(t, n.ApplicationSheet)
	assert.Equal(t, "CV, ID card", n.ApplicationSheet.DocumentsToAttach)
	assert.Nil(t, n.Comment)

	_, err = f.svc.Create(ctx, testutil.NewNotice(protocol, 1, 1, 1))
	assert.True(t, core.IsConflict(err), "got %v", err)
}

func TestService_Create_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(nn *notice.NewNotice)
	}{
		{"bad protocol", func(nn *notice.NewNotice) { nn.Protocol = "protocol 1" }},
		{"no articles", func(nn *notice.NewNotice) { nn.Articles = nil }},
		{"duplicate articles", func(nn *notice.NewNotice) { nn.Articles = append(nn.Articles, nn.Articles[0]) }},
		{"duplicate assignments", func(nn *notice.NewNotice) { nn.Assignments = append(nn.Assignments, nn.Assignments[0]) }},
		{"score too high", func(nn *notice.NewNotice) { nn.EvaluationCriteria[0].MaxScore = 28 }},
		{"bad assignment code", func(nn *notice.NewNotice) { nn.Assignments[0].Code = "tut-1" }},
		{"three decimals", func(nn *notice.NewNotice) { nn.Assignments[0].HourlyCost = 10.125 }},
		{"bad deadline", func(nn *notice.NewNotice) { nn.Deadline = "30/06/2021" }},
		{"unknown state", func(nn *notice.NewNotice) { nn.State = "Forgotten" }},
		{"no application sheet", func(nn *notice.NewNotice) { nn.ApplicationSheet = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			nn := testutil.NewNotice(protocol, 1, 1, 1)
			tc.modify(&nn)

			_, err := f.svc.Create(context.Background(), nn)
			assert.True(t, core.IsValidation(err), "got %v", err)

			exists, err := f.svc.Exists(context.Background(), protocol)
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestService_Create_RollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.FailOn("assignments.Create", errDiskOnFire)

	_, err := f.svc.Create(ctx, testutil.NewNotice(protocol, 2, 2, 2))
	var applyErr *reconcile.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, string(notice.KindAssignments), applyErr.Kind)
	assert.Len(t, applyErr.Failures, 2)
	var persistErr *core.PersistenceError
	assert.ErrorAs(t, err, &persistErr)

	exists, err := f.svc.Exists(ctx, protocol)
	require.NoError(t, err)
	assert.False(t, exists)
	articles, err := dummydb.NewArticleRepository(f.db).FindByNotice(ctx, protocol)
	require.NoError(t, err)
	assert.Empty(t, articles)

	f.db.FailOn("assignments.Create", nil)
	_, err = f.svc.Create(ctx, testutil.NewNotice(protocol, 2, 2, 2))
	assert.NoError(t, err)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("omitted collections are left as is", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 2, 2, 2)

		un := notice.UpdateNotice{Fields: orig.Fields}
		un.Description = "New description"
		n, err := f.svc.Update(ctx, protocol, un)
		require.NoError(t, err)
		assert.Equal(t, "New description", n.Description)
		assert.Equal(t, orig.State, n.State)
		assert.ElementsMatch(t, initials(orig.Articles), initials(n.Articles))
		assert.Len(t, n.EvaluationCriteria, 2)
		assert.ElementsMatch(t, orig.Assignments, n.Assignments)
		assert.Equal(t, orig.ApplicationSheet, n.ApplicationSheet)
	})

	t.Run("present collections replace the stored ones", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 2, 2, 1)

		un := notice.UpdateNotice{
			Fields: orig.Fields,
			Articles: core.Some(
				notice.Article{Initial: "Art A", Text: "new text"},
				notice.Article{Initial: "Art C", Text: "third"},
			),
			EvaluationCriteria: core.Some[notice.EvaluationCriterion](),
			ApplicationSheet:   &notice.ApplicationSheet{DocumentsToAttach: "CV only"},
		}
		n, err := f.svc.Update(ctx, protocol, un)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Art A", "Art C"}, initials(n.Articles))
		for _, a := range n.Articles {
			if a.Initial == "Art A" {
				assert.Equal(t, "new text", a.Text)
			}
		}
		assert.Empty(t, n.EvaluationCriteria)
		assert.NotNil(t, n.EvaluationCriteria)
		assert.Len(t, n.Assignments, 1)
		assert.Equal(t, "CV only", n.ApplicationSheet.DocumentsToAttach)
	})

	t.Run("assignments keep their lifecycle", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 1, 1, 2)
		offered := orig.Assignments[0]
		for _, a := range orig.Assignments {
			if a.Code == "TUT/1" {
				offered = a
			}
		}
		assignments := dummydb.NewAssignmentRepository(f.db)
		next := offered
		next.State = assignment.StateWaiting
		next.Student = "m.rossi1@studenti.unisa.it"
		ok, err := assignments.Transition(ctx, offered.ID, assignment.StateUnassigned, next)
		require.NoError(t, err)
		require.True(t, ok)

		edited := testutil.NewAssignment("TUT/1")
		edited.ActivityDescription = "exam assistance"
		un := notice.UpdateNotice{
			Fields:      orig.Fields,
			Assignments: core.Some(edited, testutil.NewAssignment("TUT/3")),
		}
		n, err := f.svc.Update(ctx, protocol, un)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"TUT/1", "TUT/3"}, codes(n.Assignments))

		a, err := assignments.Get(ctx, offered.ID)
		require.NoError(t, err)
		assert.Equal(t, "exam assistance", a.ActivityDescription)
		assert.Equal(t, assignment.StateWaiting, a.State)
		assert.Equal(t, "m.rossi1@studenti.unisa.it", a.Student)
	})

	t.Run("state change notifies the referent", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 1, 1, 1)

		n, err := f.svc.Update(ctx, protocol, notice.UpdateNotice{State: string(notice.StateInAcceptance), Fields: orig.Fields})
		require.NoError(t, err)
		assert.Equal(t, notice.StateInAcceptance, n.State)
		sent := f.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, referent, sent[0].To[0].Address)
		assert.Equal(t, "Notice Prot. n. 1 is now In Acceptance", sent[0].Subject)

		f.mailSvc.Reset()
		_, err = f.svc.Update(ctx, protocol, notice.UpdateNotice{Fields: orig.Fields})
		require.NoError(t, err)
		assert.Empty(t, f.mailSvc.SentMessages())
	})

	t.Run("errors", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 1, 1, 1)

		_, err := f.svc.Update(ctx, "Prot. n. 404", notice.UpdateNotice{})
		assert.True(t, core.IsNotFound(err), "got %v", err)

		_, err = f.svc.Update(ctx, protocol, notice.UpdateNotice{State: "Forgotten", Fields: orig.Fields})
		assert.True(t, core.IsValidation(err), "got %v", err)

		dup := notice.Article{Initial: "Art A", Text: "a"}
		_, err = f.svc.Update(ctx, protocol, notice.UpdateNotice{Fields: orig.Fields, Articles: core.Some(dup, dup)})
		assert.True(t, core.IsValidation(err), "got %v", err)
	})

	t.Run("a failing child rolls everything back", func(t *testing.T) {
		f := newFixture(t)
		orig := f.create(t, 2, 2, 1)
		f.db.FailOn("criteria.Create", errDiskOnFire)

		un := notice.UpdateNotice{
			Fields:             orig.Fields,
			Articles:           core.Some(notice.Article{Initial: "Art Z", Text: "z"}),
			EvaluationCriteria: core.Some(notice.EvaluationCriterion{Name: "Brand new", MaxScore: 5}),
		}
		un.Description = "should not stick"
		_, err := f.svc.Update(ctx, protocol, un)
		var persistErr *core.PersistenceError
		require.ErrorAs(t, err, &persistErr)
		assert.Equal(t, "criteria.Create", persistErr.Op)

		f.db.FailOn("criteria.Create", nil)
		n, err := f.svc.FindByProtocol(ctx, protocol)
		require.NoError(t, err)
		assert.Equal(t, orig.Description, n.Description)
		assert.ElementsMatch(t, initials(orig.Articles), initials(n.Articles))
		assert.Len(t, n.EvaluationCriteria, 2)
	})
}

func TestService_FindByProtocol_Unresolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 2, 2, 2)

	f.db.FailOn("articles.FindByNotice", errDiskOnFire)
	f.db.FailOn("sheets.Get", errDiskOnFire)
	n, err := f.svc.FindByProtocol(ctx, protocol)
	require.NoError(t, err)
	assert.False(t, n.Complete())
	assert.Equal(t, []notice.ChildKind{notice.KindApplicationSheet, notice.KindArticles}, n.Unresolved)
	assert.Empty(t, n.Articles)
	assert.Nil(t, n.ApplicationSheet)
	assert.Len(t, n.EvaluationCriteria, 2)
	assert.Len(t, n.Assignments, 2)

	notices, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Len(t, notices[0].Unresolved, 2)

	f.db.FailOn("notices.Get", errDiskOnFire)
	_, err = f.svc.FindByProtocol(ctx, protocol)
	assert.True(t, core.IsPersistence(err), "got %v", err)
}

func TestService_Remove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.create(t, 2, 2, 2)

	student := "m.rossi1@studenti.unisa.it"
	err := dummydb.NewRatingRepository(f.db).Create(ctx, rating.Rating{
		Student:      user.User{Email: student},
		AssignmentID: n.Assignments[0].ID,
		TitlesScore:  10,
	})
	require.NoError(t, err)
	candidatures := dummydb.NewCandidatureRepository(f.db)
	err = candidatures.Create(ctx, candidature.Candidature{Student: student, NoticeProtocol: protocol, State: candidature.StateEditable})
	require.NoError(t, err)
	_, err = f.svc.SetComment(ctx, notice.Comment{NoticeProtocol: protocol, Author: referent, Text: "looks good"})
	require.NoError(t, err)

	removed, err := f.svc.Remove(ctx, protocol)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = f.svc.FindByProtocol(ctx, protocol)
	assert.True(t, core.IsNotFound(err), "got %v", err)
	ratings, err := dummydb.NewRatingRepository(f.db).FindByStudent(ctx, student)
	require.NoError(t, err)
	assert.Empty(t, ratings)
	exists, err := candidatures.Exists(ctx, candidature.Key{Student: student, NoticeProtocol: protocol})
	require.NoError(t, err)
	assert.False(t, exists)
	assignments, err := dummydb.NewAssignmentRepository(f.db).FindByNotice(ctx, protocol)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	removed, err = f.svc.Remove(ctx, protocol)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestService_Remove_RollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, 1, 1, 1)
	f.db.FailOn("notices.Remove", errDiskOnFire)

	_, err := f.svc.Remove(ctx, protocol)
	assert.True(t, core.IsPersistence(err), "got %v", err)

	f.db.FailOn("notices.Remove", nil)
	n, err := f.svc.FindByProtocol(ctx, protocol)
	require.NoError(t, err)
	assert.Len(t, n.Articles, 1)
	assert.Len(t, n.Assignments, 1)
}

func TestService_Comments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetComment(ctx, notice.Comment{NoticeProtocol: protocol, Author: referent, Text: "hi"})
	assert.True(t, core.IsNotFound(err), "got %v", err)

	f.create(t, 1, 1, 1)
	_, err = f.svc.SetComment(ctx, notice.Comment{NoticeProtocol: protocol, Author: referent})
	assert.True(t, core.IsValidation(err), "got %v", err)

	for _, text := range []string{"first", "second"} {
		c, err := f.svc.SetComment(ctx, notice.Comment{NoticeProtocol: protocol, Author: referent, Text: text})
		require.NoError(t, err)
		assert.Equal(t, text, c.Text)
	}
	n, err := f.svc.FindByProtocol(ctx, protocol)
	require.NoError(t, err)
	require.NotNil(t, n.Comment)
	assert.Equal(t, "second", n.Comment.Text)

	removed, err := f.svc.RemoveComment(ctx, protocol)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.svc.RemoveComment(ctx, protocol)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestService_Finders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := testutil.NewNotice("Prot. n. 1", 1, 1, 1)
	first.ReferentProfessor = referent
	second := testutil.NewNotice("Prot. n. 2", 1, 1, 1)
	second.State = string(notice.StatePublished)
	for _, nn := range []notice.NewNotice{first, second} {
		_, err := f.svc.Create(ctx, nn)
		require.NoError(t, err)
	}

	notices, err := f.svc.FindByState(ctx, notice.StatePublished)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Prot. n. 2", notices[0].Protocol)
	assert.Len(t, notices[0].Articles, 1)

	notices, err = f.svc.FindByReferent(ctx, "Bianchi@unisa.it")
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, "Prot. n. 1", notices[0].Protocol)

	notices, err = f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, notices, 2)

	_, err = f.svc.FindByState(ctx, "Forgotten")
	assert.True(t, core.IsValidation(err), "got %v", err)
	_, err = f.svc.FindByReferent(ctx, " ")
	assert.True(t, core.IsValidation(err), "got %v", err)
}
