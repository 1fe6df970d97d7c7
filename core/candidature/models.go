package candidature

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/foureyes/bando/core"
)

type State string

const (
	StateEditable     State = "Editable"
	StateDisabled     State = "Disabled"
	StateRejected     State = "Rejected"
	StateInEvaluation State = "In Evaluation"
	StateEvaluated    State = "Evaluated"
)

var States = []State{StateEditable, StateDisabled, StateRejected, StateInEvaluation, StateEvaluated}

func ParseState(s string) (State, bool) {
	for _, st := range States {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// CanMoveTo reports whether a candidature may go from s to next.
func (s State) CanMoveTo(next State) bool {
	switch s {
	case StateEditable:
		return next == StateDisabled || next == StateInEvaluation
	case StateDisabled:
		return next == StateEditable
	case StateInEvaluation:
		return next == StateEvaluated || next == StateRejected
	default:
		return false
	}
}

// StateError is returned when a candidature is not in a state allowing the operation.
type StateError struct {
	Op      string
	Key     Key
	Current State
}

func (e StateError) Error() string {
	return fmt.Sprintf("cannot %s candidature %s: it is %s", e.Op, e.Key, e.Current)
}

func IsStateError(err error) bool {
	_, ok := errors.Cause(err).(*StateError)
	return ok
}

type Document struct {
	Student        string `json:"student,omitempty"`
	NoticeProtocol string `json:"notice_protocol,omitempty"`
	FileName       string `json:"file_name" validate:"required,max=255"`
	File           []byte `json:"file,omitempty"`
}

func DocumentKey(d Document) string { return d.FileName }

type Key struct {
	Student        string `json:"student"`
	NoticeProtocol string `json:"notice_protocol"`
}

func (k Key) String() string { return k.Student + "@" + k.NoticeProtocol }

func (k *Key) clean() {
	k.Student = core.CleanString(k.Student, true /* lower */)
	k.NoticeProtocol = core.CleanString(k.NoticeProtocol)
}

// Candidature is the application of a student to a notice.
type Candidature struct {
	Student        string     `json:"student"`
	NoticeProtocol string     `json:"notice_protocol"`
	State          State      `json:"state"`
	LastEdit       time.Time  `json:"last_edit"`
	Documents      []Document `json:"documents"`

	// DocumentsUnresolved is set when the documents could not be loaded.
	DocumentsUnresolved bool `json:"documents_unresolved,omitempty"`
}

func (c Candidature) Key() Key {
	return Key{Student: c.Student, NoticeProtocol: c.NoticeProtocol}
}

type NewCandidature struct {
	NoticeProtocol string     `json:"notice_protocol" validate:"required,max=125"`
	Documents      []Document `json:"documents" validate:"max=20,dive"`
}

// UpdateCandidature replaces the documents when they are Present.
type UpdateCandidature struct {
	Documents core.Collection[Document] `json:"documents"`
}

type (
	Repository interface {
		// Create fails with *core.ConflictError when the student already applied to the notice.
		Create(ctx context.Context, c Candidature, exec ...core.DBExecutor) error
		// Update overwrites state and last edit; *core.NotFoundError when no row matches.
		Update(ctx context.Context, c Candidature, exec ...core.DBExecutor) error
		Remove(ctx context.Context, key Key, exec ...core.DBExecutor) (bool, error)
		Exists(ctx context.Context, key Key, exec ...core.DBExecutor) (bool, error)
		Get(ctx context.Context, key Key, exec ...core.DBExecutor) (Candidature, error)
		FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]Candidature, error)
		FindByStudent(ctx context.Context, student string, exec ...core.DBExecutor) ([]Candidature, error)
		// RemoveByNotice removes the candidatures of a notice with their documents.
		RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	DocumentRepository interface {
		Create(ctx context.Context, d Document, exec ...core.DBExecutor) error
		// Update overwrites the file of the document matching (Student, NoticeProtocol, FileName).
		Update(ctx context.Context, d Document, exec ...core.DBExecutor) error
		Remove(ctx context.Context, key Key, fileName string, exec ...core.DBExecutor) error
		FindByCandidature(ctx context.Context, key Key, exec ...core.DBExecutor) ([]Document, error)
		RemoveByCandidature(ctx context.Context, key Key, exec ...core.DBExecutor) (int64, error)
	}

	// NoticeChecker tells whether a notice exists.
	NoticeChecker interface {
		Exists(ctx context.Context, protocol string) (bool, error)
	}
)
