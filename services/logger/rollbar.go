package logsvc

import (
	"log"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/user"
)

type RollbarLogger struct {
	std    *log.Logger
	mu     *sync.Mutex // the person is global to the rollbar client
	report *bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger prints to std and reports to rollbar. Reporting is off without a token and in test mode.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{std: std, mu: new(sync.Mutex), report: new(bool)}
	l.Enable(conf.RollbarToken != "" && !conf.TestMode)
	return l
}

func (l RollbarLogger) Enable(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.report = enabled
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User (or *user.User)
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		var usr *user.User
		switch v := arg.(type) {
		case user.User:
			usr = &v
		case *user.User:
			usr = v
		}
		if usr == nil {
			newArgs = append(newArgs, arg)
			continue
		}
		if !usrSet { // only set one User
			rollbar.SetPerson(usr.Email, usr.Name+" "+usr.Surname, usr.Email)
			usrSet = true
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) send(level string, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !*l.report {
		return
	}
	rollbar.Log(level, l.prepare(msg, args)...)
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.send(rollbar.DEBUG, msg, args)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.send(rollbar.INFO, msg, args)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.send(rollbar.WARN, msg, args)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.send(rollbar.ERR, msg, args)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.send(rollbar.CRIT, msg, args)
	l.print(msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
