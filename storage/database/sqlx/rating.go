package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/rating"
	"github.com/foureyes/bando/core/user"
)

const ratingColumns = `r.student, r.assignment_id, r.titles_score, r.interview_score`

type ratingRow struct {
	Student        string `db:"student"`
	AssignmentID   int64  `db:"assignment_id"`
	TitlesScore    int    `db:"titles_score"`
	InterviewScore int    `db:"interview_score"`
}

type ratingRepository struct {
	exec core.DBExecutor
}

var _ rating.Repository = (*ratingRepository)(nil) // interface compliance check

func NewRatingRepository(exec core.DBExecutor) *ratingRepository {
	return &ratingRepository{exec: exec}
}

func keyString(k rating.Key) string {
	return fmt.Sprintf("%s #%d", k.Student, k.AssignmentID)
}

func (repo ratingRepository) unrow(r ratingRow) rating.Rating {
	return rating.Rating{
		Student:        user.User{Email: r.Student},
		AssignmentID:   r.AssignmentID,
		TitlesScore:    r.TitlesScore,
		InterviewScore: r.InterviewScore,
	}
}

func (repo ratingRepository) selectRatings(ctx context.Context, db core.DBExecutor, where string, args ...interface{}) ([]rating.Rating, error) {
	var rows []ratingRow
	q := `SELECT ` + ratingColumns + ` FROM ratings r ` + where + ` ORDER BY r.assignment_id, r.student`
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "finding ratings", "rating", "")
	}
	ratings := make([]rating.Rating, 0, len(rows))
	for _, r := range rows {
		ratings = append(ratings, repo.unrow(r))
	}
	return ratings, nil
}

func (repo ratingRepository) Create(ctx context.Context, r rating.Rating, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO ratings (student, assignment_id, titles_score, interview_score) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), r.Student.Email, r.AssignmentID, r.TitlesScore, r.InterviewScore)
	return trapErr(err, "inserting rating", "rating", keyString(r.Key()))
}

func (repo ratingRepository) Update(ctx context.Context, r rating.Rating, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE ratings SET titles_score = ?, interview_score = ? WHERE student = ? AND assignment_id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), r.TitlesScore, r.InterviewScore, r.Student.Email, r.AssignmentID)
	if err != nil {
		return trapErr(err, "updating rating", "rating", keyString(r.Key()))
	}
	return mustAffect(res, "updating rating", "rating", keyString(r.Key()))
}

func (repo ratingRepository) Remove(ctx context.Context, key rating.Key, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM ratings WHERE student = ? AND assignment_id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), key.Student, key.AssignmentID)
	if err != nil {
		return false, trapErr(err, "deleting rating", "rating", keyString(key))
	}
	n, err := rowsAffected(res, "deleting rating")
	return n == 1, err
}

func (repo ratingRepository) Exists(ctx context.Context, key rating.Key, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	var cnt int
	q := `SELECT COUNT(*) FROM ratings WHERE student = ? AND assignment_id = ?`
	if err := sqlx.GetContext(ctx, db, &cnt, db.Rebind(q), key.Student, key.AssignmentID); err != nil {
		return false, trapErr(err, "checking rating", "rating", keyString(key))
	}
	return cnt > 0, nil
}

func (repo ratingRepository) Get(ctx context.Context, key rating.Key, exec ...core.DBExecutor) (rating.Rating, error) {
	db := core.GetExec(repo.exec, exec)
	var r ratingRow
	q := `SELECT ` + ratingColumns + ` FROM ratings r WHERE r.student = ? AND r.assignment_id = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), key.Student, key.AssignmentID); err != nil {
		return rating.Rating{}, trapErr(err, "getting rating", "rating", keyString(key))
	}
	return repo.unrow(r), nil
}

func (repo ratingRepository) FindByStudent(ctx context.Context, student string, exec ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.selectRatings(ctx, core.GetExec(repo.exec, exec), "WHERE r.student = ?", student)
}

func (repo ratingRepository) FindByAssignment(ctx context.Context, assignmentID int64, exec ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.selectRatings(ctx, core.GetExec(repo.exec, exec), "WHERE r.assignment_id = ?", assignmentID)
}

func (repo ratingRepository) FindByProtocol(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]rating.Rating, error) {
	return repo.selectRatings(ctx, core.GetExec(repo.exec, exec),
		"JOIN assignments a ON a.id = r.assignment_id WHERE a.notice_protocol = ?", protocol)
}

func (repo ratingRepository) RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM ratings WHERE assignment_id IN (SELECT id FROM assignments WHERE notice_protocol = ?)`
	res, err := db.ExecContext(ctx, db.Rebind(q), protocol)
	if err != nil {
		return 0, trapErr(err, "deleting ratings", "rating", protocol)
	}
	return rowsAffected(res, "deleting ratings")
}
