package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/foureyes/bando/apps/api/echo"
	"github.com/foureyes/bando/core/candidature"
)

func candidaturePath(student string, rest ...string) string {
	p := "/v1/candidatures/" + url.PathEscape(protocol) + "/" + student
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func Test_candidatureApi(t *testing.T) {
	a := setup(t)
	a.createNotice(t, protocol, 1)

	student := a.token(t, a.student)
	office := a.token(t, a.office)
	nc := candidature.NewCandidature{
		NoticeProtocol: protocol,
		Documents:      []candidature.Document{{FileName: "cv.pdf", File: []byte("cv")}},
	}
	state := func(st candidature.State) []byte {
		return marshalObj(t, echoapi.SetStateRequest{State: st})
	}

	a.run(t, []httpTest{
		{
			name: "students only", method: http.MethodPost, path: "/v1/candidatures", body: marshalObj(t, nc),
			token: office, wantCode: http.StatusUnauthorized,
		},
		{
			name: "unknown notice", method: http.MethodPost, path: "/v1/candidatures", token: student,
			body: marshalObj(t, candidature.NewCandidature{NoticeProtocol: "Prot. n. 99"}), wantCode: http.StatusNotFound,
		},
		{name: "create", method: http.MethodPost, path: "/v1/candidatures", body: marshalObj(t, nc), token: student, wantCode: http.StatusCreated},
		{name: "create again", method: http.MethodPost, path: "/v1/candidatures", body: marshalObj(t, nc), token: student, wantCode: http.StatusPreconditionFailed},
		{name: "hidden from other students", path: candidaturePath(studentEmail), token: a.token(t, a.other), wantCode: http.StatusNotFound},
		{name: "query: filter required", path: "/v1/candidatures", token: office, wantCode: http.StatusPreconditionFailed},
		{
			name: "evaluation is for staff", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state(candidature.StateEvaluated), token: student, wantCode: http.StatusUnauthorized,
		},
		{
			name: "submission is for the owner", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state(candidature.StateInEvaluation), token: office, wantCode: http.StatusUnauthorized,
		},
		{
			name: "unknown state", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state("Lost"), token: student, wantCode: http.StatusPreconditionFailed,
		},
	})

	t.Run("read", func(t *testing.T) {
		rec := a.do(http.MethodGet, candidaturePath(studentEmail), office)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c candidature.Candidature
		unmarshal(t, rec, &c)
		assert.Equal(t, candidature.StateEditable, c.State)
		require.Len(t, c.Documents, 1)
		assert.Equal(t, []byte("cv"), c.Documents[0].File)

		for _, path := range []string{"/v1/candidatures?notice_protocol=Prot.+n.+1", "/v1/candidatures?student=" + studentEmail} {
			rec = a.do(http.MethodGet, path, office)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var cs []candidature.Candidature
			unmarshal(t, rec, &cs)
			assert.Len(t, cs, 1, path)
		}

		// students get their own candidatures whatever they ask for
		rec = a.do(http.MethodGet, "/v1/candidatures?student="+studentEmail, a.token(t, a.other))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("documents", func(t *testing.T) {
		rec := a.do(http.MethodPut, candidaturePath(studentEmail, "documents"), student,
			[]byte(`{"documents": [{"file_name": "id.pdf", "file": "aWQ="}]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c candidature.Candidature
		unmarshal(t, rec, &c)
		require.Len(t, c.Documents, 1)
		assert.Equal(t, "id.pdf", c.Documents[0].FileName)
		assert.Equal(t, []byte("id"), c.Documents[0].File)

		// omitted documents stay
		rec = a.do(http.MethodPut, candidaturePath(studentEmail, "documents"), student, []byte(`{}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &c)
		assert.Len(t, c.Documents, 1)
	})

	a.run(t, []httpTest{
		{
			name: "submit", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state(candidature.StateInEvaluation), token: student, wantCode: http.StatusOK,
		},
		{
			name: "no edits in evaluation", method: http.MethodPut, path: candidaturePath(studentEmail, "documents"),
			body: []byte(`{"documents": []}`), token: student, wantCode: http.StatusPreconditionFailed,
		},
		{
			name: "evaluate", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state(candidature.StateEvaluated), token: a.token(t, a.ddi), wantCode: http.StatusOK,
		},
		{
			name: "reject after evaluation", method: http.MethodPut, path: candidaturePath(studentEmail, "state"),
			body: state(candidature.StateRejected), token: office, wantCode: http.StatusPreconditionFailed,
		},
		{name: "professors cannot remove", method: http.MethodDelete, path: candidaturePath(studentEmail), token: a.token(t, a.professor), wantCode: http.StatusUnauthorized},
		{
			name: "remove", method: http.MethodDelete, path: candidaturePath(studentEmail), token: student,
			wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.RemovedResponse{Removed: true}),
		},
		{name: "gone", path: candidaturePath(studentEmail), token: student, wantCode: http.StatusNotFound},
	})
}
