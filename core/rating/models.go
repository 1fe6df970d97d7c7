package rating

import (
	"context"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/user"
)

// Rating is the score a student got for an assignment.
// Student is loaded from the user store on read; only its email is persisted.
type Rating struct {
	Student        user.User `json:"student"`
	AssignmentID   int64     `json:"assignment_id"`
	TitlesScore    int       `json:"titles_score"`
	InterviewScore int       `json:"interview_score"`
}

// Total is the sum of both scores.
func (r Rating) Total() int { return r.TitlesScore + r.InterviewScore }

// Key identifies a rating.
type Key struct {
	Student      string `json:"student"`
	AssignmentID int64  `json:"assignment_id"`
}

func (r Rating) Key() Key {
	return Key{Student: r.Student.Email, AssignmentID: r.AssignmentID}
}

// Score is what is needed to create or update a Rating.
type Score struct {
	Student        string `json:"student" validate:"required,email"`
	AssignmentID   int64  `json:"assignment_id" validate:"required,min=1"`
	TitlesScore    int    `json:"titles_score" validate:"min=0"`
	InterviewScore int    `json:"interview_score" validate:"min=0"`
}

func (s Score) rating() Rating {
	return Rating{
		Student:        user.User{Email: s.Student},
		AssignmentID:   s.AssignmentID,
		TitlesScore:    s.TitlesScore,
		InterviewScore: s.InterviewScore,
	}
}

type (
	Repository interface {
		// Create fails with *core.ConflictError when the student is already rated for the assignment.
		Create(ctx context.Context, r Rating, exec ...core.DBExecutor) error
		// Update fails with *core.NotFoundError when the rating does not exist.
		Update(ctx context.Context, r Rating, exec ...core.DBExecutor) error
		Remove(ctx context.Context, key Key, exec ...core.DBExecutor) (bool, error)
		Exists(ctx context.Context, key Key, exec ...core.DBExecutor) (bool, error)
		Get(ctx context.Context, key Key, exec ...core.DBExecutor) (Rating, error)
		FindByStudent(ctx context.Context, student string, exec ...core.DBExecutor) ([]Rating, error)
		FindByAssignment(ctx context.Context, assignmentID int64, exec ...core.DBExecutor) ([]Rating, error)
		// FindByProtocol returns the ratings of every assignment of a notice.
		FindByProtocol(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]Rating, error)
		RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error)
	}

	// AssignmentGetter is the part of the assignment store ratings need.
	AssignmentGetter interface {
		Get(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.Assignment, error)
	}

	// UserGetter is the part of the user store ratings need.
	UserGetter interface {
		Get(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error)
	}
)
