package notice

import (
	"context"
	"time"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
)

type State string

const (
	StateDraft                State = "Draft"
	StateInAcceptance         State = "In Acceptance"
	StateAccepted             State = "Accepted"
	StateInApproval           State = "In Approval"
	StateApproved             State = "Approved"
	StatePublished            State = "Published"
	StateExpired              State = "Expired"
	StateWaitingForGradedList State = "Waiting for Graded List"
	StateClosed               State = "Closed"
)

var States = []State{
	StateDraft, StateInAcceptance, StateAccepted, StateInApproval, StateApproved,
	StatePublished, StateExpired, StateWaitingForGradedList, StateClosed,
}

func ParseState(s string) (State, bool) {
	for _, st := range States {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ChildKind names a collection owned by a notice.
type ChildKind string

const (
	KindArticles           ChildKind = "articles"
	KindEvaluationCriteria ChildKind = "evaluation_criteria"
	KindAssignments        ChildKind = "assignments"
	KindApplicationSheet   ChildKind = "application_sheet"
	KindComment            ChildKind = "comment"
)

type Article struct {
	ID             int64  `json:"id,omitempty"`
	NoticeProtocol string `json:"notice_protocol,omitempty"`
	Initial        string `json:"initial" validate:"required,max=20,articleinitial"`
	Text           string `json:"text" validate:"required,max=5000"`
}

func ArticleKey(a Article) string { return a.Initial }

type EvaluationCriterion struct {
	NoticeProtocol string `json:"notice_protocol,omitempty"`
	Name           string `json:"name" validate:"required,max=125"`
	MaxScore       int    `json:"max_score" validate:"min=1,max=27"`
}

func CriterionKey(c EvaluationCriterion) string { return c.Name }

type ApplicationSheet struct {
	NoticeProtocol    string `json:"notice_protocol,omitempty"`
	DocumentsToAttach string `json:"documents_to_attach" validate:"required,max=5000"`
}

type Comment struct {
	NoticeProtocol string `json:"notice_protocol,omitempty"`
	Author         string `json:"author"`
	Text           string `json:"text" validate:"required,max=500"`
}

// Fields are the scalar columns of a notice.
type Fields struct {
	ReferentProfessor          string   `json:"referent_professor" validate:"omitempty,email,max=254"`
	Description                string   `json:"description" validate:"omitempty,max=300"`
	NoticeSubject              string   `json:"notice_subject" validate:"omitempty,max=2000"`
	AdmissionRequirements      string   `json:"admission_requirements" validate:"omitempty,max=5000"`
	AssessableTitles           string   `json:"assessable_titles" validate:"omitempty,max=5000"`
	HowToSubmitApplications    string   `json:"how_to_submit_applications" validate:"omitempty,max=5000"`
	SelectionBoard             string   `json:"selection_board" validate:"omitempty,max=5000"`
	Acceptance                 string   `json:"acceptance" validate:"omitempty,max=5000"`
	Incompatibility            string   `json:"incompatibility" validate:"omitempty,max=5000"`
	TerminationOfTheAssignment string   `json:"termination_of_the_assignment" validate:"omitempty,max=5000"`
	NatureOfTheAssignment      string   `json:"nature_of_the_assignment" validate:"omitempty,max=5000"`
	UnusedFunds                string   `json:"unused_funds" validate:"omitempty,max=5000"`
	ResponsibleForTheProcedure string   `json:"responsible_for_the_procedure" validate:"omitempty,max=254"`
	NoticeFunds                *float64 `json:"notice_funds" validate:"omitempty,min=0"`
	Type                       string   `json:"type" validate:"omitempty,max=50"`
	Deadline                   string   `json:"deadline" validate:"omitempty,isodate"` // YYYY-MM-DD
	NoticeFile                 string   `json:"notice_file" validate:"omitempty,max=255"`
	GradedListFile             string   `json:"graded_list_file" validate:"omitempty,max=255"`
}

func (f *Fields) clean() {
	f.ReferentProfessor = core.CleanString(f.ReferentProfessor, true /* lower */)
	f.Type = core.CleanString(f.Type)
	f.Deadline = core.CleanString(f.Deadline)
}

// Notice is a call for assignments together with everything it owns.
type Notice struct {
	Protocol string `json:"protocol"`
	State    State  `json:"state"`
	Fields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Articles           []Article               `json:"articles"`
	EvaluationCriteria []EvaluationCriterion   `json:"evaluation_criteria"`
	Assignments        []assignment.Assignment `json:"assignments"`
	ApplicationSheet   *ApplicationSheet       `json:"application_sheet"`
	Comment            *Comment                `json:"comment"`

	// Unresolved lists the child kinds that could not be loaded.
	// Their fields are empty because of the failure, not because nothing is stored.
	Unresolved []ChildKind `json:"unresolved,omitempty"`
}

// Complete reports whether every child kind was loaded.
func (n Notice) Complete() bool { return len(n.Unresolved) == 0 }

// NewNotice contains information needed to create a Notice with all of its children.
type NewNotice struct {
	Protocol string `json:"protocol" validate:"required,max=125,protocol"`
	State    string `json:"state"`
	Fields
	Articles           []Article               `json:"articles" validate:"min=1,max=20,dive"`
	EvaluationCriteria []EvaluationCriterion   `json:"evaluation_criteria" validate:"min=1,max=6,dive"`
	Assignments        []assignment.Assignment `json:"assignments" validate:"min=1,max=15,dive"`
	ApplicationSheet   *ApplicationSheet       `json:"application_sheet" validate:"required"`
}

// UpdateNotice overwrites the scalar fields of a Notice.
// A child collection that is not Present is left as is; a Present one replaces the stored one.
// An empty State keeps the stored one.
type UpdateNotice struct {
	State string `json:"state"`
	Fields
	Articles           core.Collection[Article]               `json:"articles"`
	EvaluationCriteria core.Collection[EvaluationCriterion]   `json:"evaluation_criteria"`
	Assignments        core.Collection[assignment.Assignment] `json:"assignments"`
	ApplicationSheet   *ApplicationSheet                      `json:"application_sheet"`
}

// Filter narrows a notice query; empty fields match everything.
type Filter struct {
	State    State  `query:"state"`
	Referent string `query:"referent"`
}

type (
	// Repository stores the notice rows only.
	Repository interface {
		// Create fails with *core.ConflictError when the protocol is taken.
		Create(ctx context.Context, n Notice, exec ...core.DBExecutor) error
		// Update overwrites the scalar columns; *core.NotFoundError when no row matches.
		Update(ctx context.Context, n Notice, exec ...core.DBExecutor) error
		// Remove reports whether exactly one row was deleted.
		Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (bool, error)
		Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (Notice, error)
		Exists(ctx context.Context, protocol string, exec ...core.DBExecutor) (bool, error)
		Query(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Notice, error)
	}

	ArticleRepository interface {
		Create(ctx context.Context, a Article, exec ...core.DBExecutor) (Article, error)
		// Update overwrites the text of the article matching (NoticeProtocol, Initial).
		Update(ctx context.Context, a Article, exec ...core.DBExecutor) error
		Remove(ctx context.Context, protocol, initial string, exec ...core.DBExecutor) error
		FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]Article, error)
		RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	CriterionRepository interface {
		Create(ctx context.Context, c EvaluationCriterion, exec ...core.DBExecutor) error
		// Update overwrites the max score of the criterion matching (NoticeProtocol, Name).
		Update(ctx context.Context, c EvaluationCriterion, exec ...core.DBExecutor) error
		Remove(ctx context.Context, protocol, name string, exec ...core.DBExecutor) error
		FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]EvaluationCriterion, error)
		RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	ApplicationSheetRepository interface {
		Upsert(ctx context.Context, s ApplicationSheet, exec ...core.DBExecutor) error
		// Get fails with *core.NotFoundError.
		Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (ApplicationSheet, error)
		Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	CommentRepository interface {
		Upsert(ctx context.Context, c Comment, exec ...core.DBExecutor) error
		// Get fails with *core.NotFoundError.
		Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (Comment, error)
		Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	// DependentRepository stores records that reference a notice without being part of it,
	// such as ratings and candidatures. They are removed together with the notice.
	DependentRepository interface {
		RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	Repositories struct {
		Notices     Repository
		Articles    ArticleRepository
		Criteria    CriterionRepository
		Assignments assignment.Repository
		Sheets      ApplicationSheetRepository
		Comments    CommentRepository
		Dependents  []DependentRepository
	}
)
