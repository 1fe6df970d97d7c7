package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/foureyes/bando/apps/api/echo"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/notice"
	testutil "github.com/foureyes/bando/tests"
)

func Test_assignmentApi_lifecycle(t *testing.T) {
	a := setup(t)
	n := a.createNotice(t, protocol, 2)
	id := n.Assignments[0].ID
	path := func(op string) string { return fmt.Sprintf("/v1/assignments/%d/%s", id, op) }

	professor := a.token(t, a.professor)
	office := a.token(t, a.office)
	student := a.token(t, a.student)

	a.run(t, []httpTest{
		{name: "unknown id", path: "/v1/assignments/9999", token: office, wantCode: http.StatusNotFound},
		{name: "bad id", path: "/v1/assignments/lol", token: office, wantCode: http.StatusNotFound},
		{name: "unknown id (op)", method: http.MethodPut, path: "/v1/assignments/9999/assign", token: office, wantCode: http.StatusNotFound},

		// Unassigned
		{name: "book before request", method: http.MethodPut, path: path("book"), token: student, wantCode: http.StatusPreconditionFailed},
		{
			name: "request: professor only", method: http.MethodPut, path: path("send-request"), token: office,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}), wantCode: http.StatusUnauthorized,
		},
		{
			name: "request: student required", method: http.MethodPut, path: path("send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{}), wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "request: not a student", method: http.MethodPut, path: path("send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: professorEmail}), wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "request: unknown student", method: http.MethodPut, path: path("send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: "g.neri9@studenti.unisa.it"}), wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "request", method: http.MethodPut, path: path("send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}), wantCode: http.StatusOK,
		},

		// Waiting
		{name: "book: other student", method: http.MethodPut, path: path("book"), token: a.token(t, a.other), wantCode: http.StatusPreconditionFailed},
		{name: "book: student only", method: http.MethodPut, path: path("book"), token: professor, wantCode: http.StatusUnauthorized},
		{name: "assign before booking", method: http.MethodPut, path: path("assign"), token: office, wantCode: http.StatusPreconditionFailed},
		{name: "book", method: http.MethodPut, path: path("book"), token: student, wantCode: http.StatusOK},

		// Booked
		{name: "decline after booking", method: http.MethodPut, path: path("decline"), token: student, wantCode: http.StatusPreconditionFailed},
		{name: "assign: teaching office only", method: http.MethodPut, path: path("assign"), token: professor, wantCode: http.StatusUnauthorized},
		{name: "assign", method: http.MethodPut, path: path("assign"), token: office, wantCode: http.StatusOK},

		// Assigned
		{
			name: "close: note required", method: http.MethodPut, path: path("close"), token: professor,
			body: marshalObj(t, echoapi.CloseRequest{}), wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "close", method: http.MethodPut, path: path("close"), token: professor,
			body: marshalObj(t, echoapi.CloseRequest{Note: "well done"}), wantCode: http.StatusOK,
		},

		// Over
		{name: "assign again", method: http.MethodPut, path: path("assign"), token: office, wantCode: http.StatusPreconditionFailed},
	})

	rec := a.do(http.MethodGet, fmt.Sprintf("/v1/assignments/%d", id), office)
	require.Equal(t, http.StatusOK, rec.Code)
	var got assignment.Assignment
	unmarshal(t, rec, &got)
	assert.Equal(t, assignment.StateOver, got.State)
	assert.Equal(t, studentEmail, got.Student)
	assert.Equal(t, "well done", got.Note)

	// one mail per transition
	assert.Len(t, a.mailSvc.SentMessages(), 4)
}

func Test_assignmentApi_decline(t *testing.T) {
	a := setup(t)
	n := a.createNotice(t, protocol, 1)
	id := n.Assignments[0].ID

	rec := a.do(http.MethodPut, fmt.Sprintf("/v1/assignments/%d/send-request", id), a.token(t, a.professor),
		marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/assignments/%d/decline", id), a.token(t, a.student))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got assignment.Assignment
	unmarshal(t, rec, &got)
	assert.Equal(t, assignment.StateUnassigned, got.State)
	assert.Empty(t, got.Student)
}

func Test_assignmentApi_search(t *testing.T) {
	a := setup(t)
	n := a.createNotice(t, protocol, 3)
	a.createNotice(t, "Prot. n. 2", 1)

	rec := a.do(http.MethodPut, fmt.Sprintf("/v1/assignments/%d/send-request", n.Assignments[1].ID), a.token(t, a.professor),
		marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	count := func(t *testing.T, path, token string) int {
		rec := a.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []assignment.Assignment
		unmarshal(t, rec, &got)
		return len(got)
	}
	office := a.token(t, a.office)

	assert.Equal(t, 4, count(t, "/v1/assignments", office))
	assert.Equal(t, 3, count(t, "/v1/assignments?notice_protocol=Prot.+n.+1", office))
	assert.Equal(t, 1, count(t, "/v1/assignments?state=Waiting", office))
	assert.Equal(t, 1, count(t, "/v1/assignments?code=TUT/1&notice_protocol=Prot.+n.+2", office))
	// students only see what was offered to them
	assert.Equal(t, 1, count(t, "/v1/assignments", a.token(t, a.student)))
	assert.Equal(t, 0, count(t, "/v1/assignments", a.token(t, a.other)))

	rec = a.do(http.MethodGet, "/v1/assignments?state=Lost", office)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func Test_assignmentApi_referent(t *testing.T) {
	a := setup(t)
	createWithReferent := func(t *testing.T, protocol, referent string) int64 {
		nn := testutil.NewNotice(protocol, 1, 1, 1)
		nn.ReferentProfessor = referent
		rec := a.do(http.MethodPost, "/v1/notices", a.token(t, a.office), marshalObj(t, nn))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created notice.Notice
		unmarshal(t, rec, &created)
		return created.Assignments[0].ID
	}
	mine := createWithReferent(t, protocol, professorEmail)
	theirs := createWithReferent(t, "Prot. n. 2", "verdi@unisa.it")
	path := func(id int64, op string) string { return fmt.Sprintf("/v1/assignments/%d/%s", id, op) }
	professor := a.token(t, a.professor)

	a.run(t, []httpTest{
		{
			name: "request: not the referent", method: http.MethodPut, path: path(theirs, "send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAccessDenied),
		},
		{
			name: "close: not the referent", method: http.MethodPut, path: path(theirs, "close"), token: professor,
			body: marshalObj(t, echoapi.CloseRequest{Note: "well done"}), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errAccessDenied),
		},
		{
			name: "request: unknown id", method: http.MethodPut, path: path(9999, "send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}), wantCode: http.StatusNotFound,
		},
		{
			name: "request: referent", method: http.MethodPut, path: path(mine, "send-request"), token: professor,
			body: marshalObj(t, echoapi.SendRequestRequest{Student: studentEmail}), wantCode: http.StatusOK,
		},
	})
}
