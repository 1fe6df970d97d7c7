package sqlxrepos

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
)

const assignmentColumns = `id, notice_protocol, code, activity_description, total_number_hours,
	title, hourly_cost, ht_fund, state, student, note`

type assignmentRow struct {
	ID                  int64       `db:"id"`
	NoticeProtocol      string      `db:"notice_protocol"`
	Code                string      `db:"code"`
	ActivityDescription string      `db:"activity_description"`
	TotalNumberHours    int         `db:"total_number_hours"`
	Title               string      `db:"title"`
	HourlyCost          float64     `db:"hourly_cost"`
	HTFund              null.String `db:"ht_fund"`
	State               string      `db:"state"`
	Student             null.String `db:"student"`
	Note                null.String `db:"note"`
}

type assignmentRepository struct {
	exec core.DBExecutor
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(exec core.DBExecutor) *assignmentRepository {
	return &assignmentRepository{exec: exec}
}

func (repo assignmentRepository) unrow(r assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:                  r.ID,
		NoticeProtocol:      r.NoticeProtocol,
		Code:                r.Code,
		ActivityDescription: r.ActivityDescription,
		TotalNumberHours:    r.TotalNumberHours,
		Title:               r.Title,
		HourlyCost:          r.HourlyCost,
		HTFund:              r.HTFund.String,
		State:               assignment.State(r.State),
		Student:             r.Student.String,
		Note:                r.Note.String,
	}
}

func (repo assignmentRepository) unrowSlice(rows []assignmentRow) []assignment.Assignment {
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, repo.unrow(r))
	}
	return assignments
}

func (repo assignmentRepository) Create(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	db := core.GetExec(repo.exec, exec)
	if a.State == "" {
		a.State = assignment.StateUnassigned
	}
	q := `INSERT INTO assignments (notice_protocol, code, activity_description, total_number_hours,
		title, hourly_cost, ht_fund, state, student, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := sqlx.GetContext(ctx, db, &a.ID, db.Rebind(q),
		a.NoticeProtocol, a.Code, a.ActivityDescription, a.TotalNumberHours,
		a.Title, a.HourlyCost, nullString(a.HTFund), string(a.State), nullString(a.Student), nullString(a.Note),
	)
	if err != nil {
		return assignment.Assignment{}, trapErr(err, "inserting assignment", "assignment", a.NoticeProtocol+" "+a.Code)
	}
	return a, nil
}

func (repo assignmentRepository) Update(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE assignments SET code = ?, activity_description = ?, total_number_hours = ?, title = ?,
		hourly_cost = ?, ht_fund = ?, state = ?, student = ?, note = ?
		WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q),
		a.Code, a.ActivityDescription, a.TotalNumberHours, a.Title,
		a.HourlyCost, nullString(a.HTFund), string(a.State), nullString(a.Student), nullString(a.Note),
		a.ID,
	)
	key := strconv.FormatInt(a.ID, 10)
	if err != nil {
		return trapErr(err, "updating assignment", "assignment", key)
	}
	return mustAffect(res, "updating assignment", "assignment", key)
}

func (repo assignmentRepository) Remove(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM assignments WHERE id = ?`), id)
	key := strconv.FormatInt(id, 10)
	if err != nil {
		return trapErr(err, "deleting assignment", "assignment", key)
	}
	return mustAffect(res, "deleting assignment", "assignment", key)
}

func (repo assignmentRepository) Get(ctx context.Context, id int64, exec ...core.DBExecutor) (assignment.Assignment, error) {
	db := core.GetExec(repo.exec, exec)
	var r assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), id); err != nil {
		return assignment.Assignment{}, trapErr(err, "getting assignment", "assignment", strconv.FormatInt(id, 10))
	}
	return repo.unrow(r), nil
}

func (repo assignmentRepository) GetByCode(ctx context.Context, protocol, code string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	db := core.GetExec(repo.exec, exec)
	var r assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE notice_protocol = ? AND code = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), protocol, code); err != nil {
		return assignment.Assignment{}, trapErr(err, "getting assignment", "assignment", protocol+" "+code)
	}
	return repo.unrow(r), nil
}

func (repo assignmentRepository) FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	return repo.Search(ctx, assignment.Filter{NoticeProtocol: protocol}, exec...)
}

func (repo assignmentRepository) Search(ctx context.Context, filter assignment.Filter, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	db := core.GetExec(repo.exec, exec)

	var (
		where []string
		args  []interface{}
	)
	if filter.Code != "" {
		where = append(where, "code = ?")
		args = append(args, filter.Code)
	}
	if filter.NoticeProtocol != "" {
		where = append(where, "notice_protocol = ?")
		args = append(args, filter.NoticeProtocol)
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Student != "" {
		where = append(where, "student = ?")
		args = append(args, filter.Student)
	}

	q := `SELECT ` + assignmentColumns + ` FROM assignments`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	var rows []assignmentRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "searching assignments", "assignment", "")
	}
	return repo.unrowSlice(rows), nil
}

func (repo assignmentRepository) Transition(
	ctx context.Context,
	id int64,
	from assignment.State,
	next assignment.Assignment,
	exec ...core.DBExecutor,
) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE assignments SET state = ?, student = ?, note = ? WHERE id = ? AND state = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q),
		string(next.State), nullString(next.Student), nullString(next.Note), id, string(from),
	)
	if err != nil {
		return false, trapErr(err, "updating assignment state", "assignment", strconv.FormatInt(id, 10))
	}
	n, err := rowsAffected(res, "updating assignment state")
	return n == 1, err
}

func (repo assignmentRepository) RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	return removeByNotice(ctx, core.GetExec(repo.exec, exec), "assignments", protocol)
}
