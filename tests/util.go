package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/notice"
	"github.com/foureyes/bando/core/user"
	logsvc "github.com/foureyes/bando/services/logger"
)

// Config returns the configuration the tests run with.
func Config() *core.Config {
	return &core.Config{
		AppName:         "Bando",
		Env:             "TEST",
		Build:           "test",
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			Address:            ":0",
			JWTExpirationDelta: time.Hour,
			ShutdownTimeout:    time.Second,
			NotifyConcurrency:  2,
		},
		Database: core.DatabaseConfig{Engine: "sqlite", Name: ":memory:"},
	}
}

// Logger discards everything it is given.
func Logger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), Config())
}

// Validator returns a validator with every custom tag and translation registered.
func Validator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	notice.InitValidators(validate, translator)
	return validate, translator
}

// CreateUser stores a user with pwd as its password.
func CreateUser(t *testing.T, repo user.Repository, email, name, surname, role, pwd string) user.User {
	t.Helper()
	now := core.Now()
	usr := user.User{
		Email:     email,
		Name:      name,
		Surname:   surname,
		Role:      role,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.Create(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// NewNotice returns a valid notice payload with the given numbers of articles, criteria and assignments.
func NewNotice(protocol string, articles, criteria, assignments int) notice.NewNotice {
	nn := notice.NewNotice{
		Protocol: protocol,
		State:    string(notice.StateDraft),
		Fields: notice.Fields{
			Description:   "Tutoring for first year courses",
			NoticeSubject: "Tutoring",
			Deadline:      "2021-06-30",
		},
		ApplicationSheet: &notice.ApplicationSheet{DocumentsToAttach: "CV, ID card"},
	}
	for i := 0; i < articles; i++ {
		nn.Articles = append(nn.Articles, notice.Article{
			Initial: "Art " + string(rune('A'+i)),
			Text:    "article text",
		})
	}
	for i := 0; i < criteria; i++ {
		nn.EvaluationCriteria = append(nn.EvaluationCriteria, notice.EvaluationCriterion{
			Name:     "Criterion " + string(rune('A'+i)),
			MaxScore: 10,
		})
	}
	for i := 0; i < assignments; i++ {
		nn.Assignments = append(nn.Assignments, NewAssignment("TUT/"+string(rune('1'+i))))
	}
	return nn
}

// NewAssignment returns a valid, unassigned assignment.
func NewAssignment(code string) assignment.Assignment {
	return assignment.Assignment{
		Code:                code,
		ActivityDescription: "lab tutoring",
		TotalNumberHours:    20,
		Title:               assignment.TitlePhD,
		HourlyCost:          25.5,
	}
}
