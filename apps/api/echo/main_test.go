package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/foureyes/bando/apps/api/echo"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/candidature"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
	emailsvc "github.com/foureyes/bando/services/email"
	dummydb "github.com/foureyes/bando/storage/database/dummy"
	testutil "github.com/foureyes/bando/tests"
)

const (
	pwd = "Xyz12345!"

	officeEmail    = "segreteria@unisa.it"
	professorEmail = "bianchi@unisa.it"
	ddiEmail       = "ddi@unisa.it"
	studentEmail   = "m.rossi1@studenti.unisa.it"
	otherEmail     = "l.verdi2@studenti.unisa.it"
)

var errAccessDenied = httpErr{Error: "access denied"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// app is a server backed by the in-memory store, with one user per role.
type app struct {
	srv     echoapi.Server
	db      *dummydb.DB
	auth    echoapi.Authenticator
	mailSvc *emailsvc.ConsoleServiceMock
	usrRepo user.Repository

	office, professor, ddi, student, other user.User
}

func setup(t *testing.T) *app {
	t.Helper()
	conf := testutil.Config()
	logger := testutil.Logger()
	validate, translator := testutil.Validator()

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	tx := dummydb.NewTransactor(db)
	usrRepo := dummydb.NewUserRepository(db)
	assignmentRepo := dummydb.NewAssignmentRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	noticeSvc := notice.NewService(dummydb.NoticeRepositories(db), tx, validate, mailSvc, logger)
	auth := echoapi.NewJWTAuthenticator(conf, usrSvc)

	a := &app{
		db:      db,
		auth:    auth,
		mailSvc: mailSvc,
		usrRepo: usrRepo,
		srv: echoapi.NewServer(echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Auth:          auth,
			UserSvc:       usrSvc,
			NoticeSvc:     noticeSvc,
			AssignmentSvc: assignment.NewService(assignmentRepo, usrRepo, validate, mailSvc, logger),
			RatingSvc:     rating.NewService(dummydb.NewRatingRepository(db), assignmentRepo, usrRepo, validate, logger),
			CandidatureSvc: candidature.NewService(
				dummydb.NewCandidatureRepository(db),
				dummydb.NewDocumentRepository(db),
				noticeSvc,
				tx,
				validate,
				logger,
			),
			Validate:   validate,
			Translator: translator,
		}),
	}
	t.Cleanup(func() { _ = a.srv.Close() })

	a.office = testutil.CreateUser(t, usrRepo, officeEmail, "Anna", "Esposito", user.RoleTeachingOffice, pwd)
	a.professor = testutil.CreateUser(t, usrRepo, professorEmail, "Carlo", "Bianchi", user.RoleProfessor, pwd)
	a.ddi = testutil.CreateUser(t, usrRepo, ddiEmail, "Dario", "Conti", user.RoleDDI, pwd)
	a.student = testutil.CreateUser(t, usrRepo, studentEmail, "Mario", "Rossi", user.RoleStudent, pwd)
	a.other = testutil.CreateUser(t, usrRepo, otherEmail, "Luca", "Verdi", user.RoleStudent, pwd)
	return a
}

func (a *app) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := a.auth.Token(usr)
	require.NoError(t, err)
	return token
}

// do serves a request and returns its recorder.
func (a *app) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func (a *app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := a.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// createNotice stores a notice with n articles, criteria and assignments through the API.
func (a *app) createNotice(t *testing.T, protocol string, n int) notice.Notice {
	t.Helper()
	rec := a.do(http.MethodPost, "/v1/notices", a.token(t, a.office), marshalObj(t, testutil.NewNotice(protocol, n, n, n)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created notice.Notice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func noticePath(protocol string, rest ...string) string {
	p := "/v1/notices/" + url.PathEscape(protocol)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData compares the body only when the test case expects one.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
