package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/foureyes/bando/apps/api/echo"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/notice"
	testutil "github.com/foureyes/bando/tests"
)

const protocol = "Prot. n. 1"

func Test_noticeApi_create(t *testing.T) {
	a := setup(t)
	office := a.token(t, a.office)

	invalid := testutil.NewNotice("42", 1, 1, 1)
	noArticles := testutil.NewNotice(protocol, 0, 1, 1)

	a.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/notices", wantCode: http.StatusUnauthorized},
		{
			name: "teaching office only", method: http.MethodPost, path: "/v1/notices",
			body: marshalObj(t, testutil.NewNotice(protocol, 1, 1, 1)), token: a.token(t, a.professor),
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAccessDenied),
		},
		{
			name: "bad protocol", method: http.MethodPost, path: "/v1/notices", body: marshalObj(t, invalid),
			token: office, wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "no articles", method: http.MethodPost, path: "/v1/notices", body: marshalObj(t, noArticles),
			token: office, wantCode: http.StatusPreconditionFailed,
		},
	})

	created := a.createNotice(t, protocol, 2)
	assert.Equal(t, protocol, created.Protocol)
	assert.Equal(t, notice.StateDraft, created.State)
	assert.Len(t, created.Articles, 2)
	assert.Len(t, created.EvaluationCriteria, 2)
	require.Len(t, created.Assignments, 2)
	assert.NotZero(t, created.Assignments[0].ID)
	assert.Equal(t, assignment.StateUnassigned, created.Assignments[0].State)
	assert.True(t, created.Complete())

	t.Run("conflict", func(t *testing.T) {
		rec := a.do(http.MethodPost, "/v1/notices", office, marshalObj(t, testutil.NewNotice(protocol, 1, 1, 1)))
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})
}

func Test_noticeApi_retrieve(t *testing.T) {
	a := setup(t)
	a.createNotice(t, protocol, 1)
	a.createNotice(t, "Prot. n. 2", 1)

	a.run(t, []httpTest{
		{name: "unknown", path: noticePath("Prot. n. 99"), token: a.token(t, a.student), wantCode: http.StatusNotFound},
		{name: "bad state filter", path: "/v1/notices?state=Lost", token: a.token(t, a.student), wantCode: http.StatusPreconditionFailed},
	})

	t.Run("by protocol", func(t *testing.T) {
		rec := a.do(http.MethodGet, noticePath(protocol), a.token(t, a.student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var n notice.Notice
		unmarshal(t, rec, &n)
		assert.Equal(t, protocol, n.Protocol)
		require.NotNil(t, n.ApplicationSheet)
		assert.Equal(t, "CV, ID card", n.ApplicationSheet.DocumentsToAttach)
	})

	t.Run("query", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/v1/notices?state=Draft", a.token(t, a.student))
		require.Equal(t, http.StatusOK, rec.Code)
		var notices []notice.Notice
		unmarshal(t, rec, &notices)
		assert.Len(t, notices, 2)

		rec = a.do(http.MethodGet, "/v1/notices?referent="+professorEmail, a.token(t, a.student))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func Test_noticeApi_update(t *testing.T) {
	a := setup(t)
	office := a.token(t, a.office)
	created := a.createNotice(t, protocol, 2)

	a.run(t, []httpTest{
		{
			name: "teaching office only", method: http.MethodPut, path: noticePath(protocol),
			body: []byte(`{"state": "In Acceptance"}`), token: a.token(t, a.ddi), wantCode: http.StatusUnauthorized,
		},
		{
			name: "unknown notice", method: http.MethodPut, path: noticePath("Prot. n. 99"),
			body: []byte(`{}`), token: office, wantCode: http.StatusNotFound,
		},
		{
			name: "unknown state", method: http.MethodPut, path: noticePath(protocol),
			body: []byte(`{"state": "Lost"}`), token: office, wantCode: http.StatusPreconditionFailed,
			wantData: marshalObj(t, map[string]string{"state": `unknown notice state "Lost"`}),
		},
	})

	t.Run("children", func(t *testing.T) {
		// articles are omitted: they stay; criteria are emptied; assignments are replaced
		body := []byte(`{
			"referent_professor": "bianchi@unisa.it",
			"state": "In Acceptance",
			"evaluation_criteria": [],
			"assignments": [{"code": "TUT/9", "activity_description": "exam support", "total_number_hours": 10, "title": "Master", "hourly_cost": 30}]
		}`)
		rec := a.do(http.MethodPut, noticePath(protocol), office, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var n notice.Notice
		unmarshal(t, rec, &n)
		assert.Equal(t, notice.StateInAcceptance, n.State)
		assert.Equal(t, created.Articles, n.Articles)
		assert.Empty(t, n.EvaluationCriteria)
		require.Len(t, n.Assignments, 1)
		assert.Equal(t, "TUT/9", n.Assignments[0].Code)
		assert.Equal(t, assignment.StateUnassigned, n.Assignments[0].State)

		// the referent hears about the new state
		sent := a.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, professorEmail, sent[0].To[0].Address)
	})
}

func Test_noticeApi_destroy(t *testing.T) {
	a := setup(t)
	office := a.token(t, a.office)
	a.createNotice(t, protocol, 1)

	a.run(t, []httpTest{
		{
			name: "teaching office only", method: http.MethodDelete, path: noticePath(protocol),
			token: a.token(t, a.professor), wantCode: http.StatusUnauthorized,
		},
		{
			name: "OK", method: http.MethodDelete, path: noticePath(protocol), token: office,
			wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.RemovedResponse{Removed: true}),
		},
		{
			name: "already removed", method: http.MethodDelete, path: noticePath(protocol), token: office,
			wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.RemovedResponse{Removed: false}),
		},
		{name: "gone", path: noticePath(protocol), token: office, wantCode: http.StatusNotFound},
		{name: "assignments gone", path: "/v1/assignments?notice_protocol=Prot.+n.+1", token: office, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}

func Test_noticeApi_comment(t *testing.T) {
	a := setup(t)
	a.createNotice(t, protocol, 1)

	a.run(t, []httpTest{
		{
			name: "staff only", method: http.MethodPut, path: noticePath(protocol, "comment"),
			body: marshalObj(t, notice.Comment{Text: "fine"}), token: a.token(t, a.student),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "empty text", method: http.MethodPut, path: noticePath(protocol, "comment"),
			body: marshalObj(t, notice.Comment{Text: "  "}), token: a.token(t, a.professor),
			wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "unknown notice", method: http.MethodPut, path: noticePath("Prot. n. 99", "comment"),
			body: marshalObj(t, notice.Comment{Text: "fine"}), token: a.token(t, a.professor),
			wantCode: http.StatusNotFound,
		},
		{
			name: "OK", method: http.MethodPut, path: noticePath(protocol, "comment"),
			body: marshalObj(t, notice.Comment{Text: "please fix art A", Author: "someone@else.it"}), token: a.token(t, a.ddi),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, notice.Comment{NoticeProtocol: protocol, Author: ddiEmail, Text: "please fix art A"}),
		},
	})

	t.Run("shown on the notice", func(t *testing.T) {
		rec := a.do(http.MethodGet, noticePath(protocol), a.token(t, a.office))
		require.Equal(t, http.StatusOK, rec.Code)
		var n notice.Notice
		unmarshal(t, rec, &n)
		require.NotNil(t, n.Comment)
		assert.Equal(t, ddiEmail, n.Comment.Author)
	})

	a.run(t, []httpTest{
		{
			name: "remove", method: http.MethodDelete, path: noticePath(protocol, "comment"), token: a.token(t, a.professor),
			wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.RemovedResponse{Removed: true}),
		},
		{
			name: "remove again", method: http.MethodDelete, path: noticePath(protocol, "comment"), token: a.token(t, a.professor),
			wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.RemovedResponse{Removed: false}),
		},
	})
}
