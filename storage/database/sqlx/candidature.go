package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/candidature"
)

type candidatureRow struct {
	Student        string    `db:"student"`
	NoticeProtocol string    `db:"notice_protocol"`
	State          string    `db:"state"`
	LastEdit       time.Time `db:"last_edit"`
}

type candidatureRepository struct {
	exec core.DBExecutor
}

var _ candidature.Repository = (*candidatureRepository)(nil) // interface compliance check

func NewCandidatureRepository(exec core.DBExecutor) *candidatureRepository {
	return &candidatureRepository{exec: exec}
}

func (repo candidatureRepository) unrow(r candidatureRow) candidature.Candidature {
	return candidature.Candidature{
		Student:        r.Student,
		NoticeProtocol: r.NoticeProtocol,
		State:          candidature.State(r.State),
		LastEdit:       r.LastEdit.UTC(),
	}
}

func (repo candidatureRepository) selectCandidatures(ctx context.Context, db core.DBExecutor, where string, args ...interface{}) ([]candidature.Candidature, error) {
	var rows []candidatureRow
	q := `SELECT student, notice_protocol, state, last_edit FROM candidatures ` + where + ` ORDER BY last_edit DESC`
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "finding candidatures", "candidature", "")
	}
	cs := make([]candidature.Candidature, 0, len(rows))
	for _, r := range rows {
		cs = append(cs, repo.unrow(r))
	}
	return cs, nil
}

func (repo candidatureRepository) Create(ctx context.Context, c candidature.Candidature, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO candidatures (student, notice_protocol, state, last_edit) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.Student, c.NoticeProtocol, string(c.State), c.LastEdit.UTC())
	return trapErr(err, "inserting candidature", "candidature", c.Key().String())
}

func (repo candidatureRepository) Update(ctx context.Context, c candidature.Candidature, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE candidatures SET state = ?, last_edit = ? WHERE student = ? AND notice_protocol = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), string(c.State), c.LastEdit.UTC(), c.Student, c.NoticeProtocol)
	if err != nil {
		return trapErr(err, "updating candidature", "candidature", c.Key().String())
	}
	return mustAffect(res, "updating candidature", "candidature", c.Key().String())
}

func (repo candidatureRepository) Remove(ctx context.Context, key candidature.Key, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM candidatures WHERE student = ? AND notice_protocol = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), key.Student, key.NoticeProtocol)
	if err != nil {
		return false, trapErr(err, "deleting candidature", "candidature", key.String())
	}
	n, err := rowsAffected(res, "deleting candidature")
	return n == 1, err
}

func (repo candidatureRepository) Exists(ctx context.Context, key candidature.Key, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	var cnt int
	q := `SELECT COUNT(*) FROM candidatures WHERE student = ? AND notice_protocol = ?`
	if err := sqlx.GetContext(ctx, db, &cnt, db.Rebind(q), key.Student, key.NoticeProtocol); err != nil {
		return false, trapErr(err, "checking candidature", "candidature", key.String())
	}
	return cnt > 0, nil
}

func (repo candidatureRepository) Get(ctx context.Context, key candidature.Key, exec ...core.DBExecutor) (candidature.Candidature, error) {
	db := core.GetExec(repo.exec, exec)
	var r candidatureRow
	q := `SELECT student, notice_protocol, state, last_edit FROM candidatures WHERE student = ? AND notice_protocol = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), key.Student, key.NoticeProtocol); err != nil {
		return candidature.Candidature{}, trapErr(err, "getting candidature", "candidature", key.String())
	}
	return repo.unrow(r), nil
}

func (repo candidatureRepository) FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]candidature.Candidature, error) {
	return repo.selectCandidatures(ctx, core.GetExec(repo.exec, exec), "WHERE notice_protocol = ?", protocol)
}

func (repo candidatureRepository) FindByStudent(ctx context.Context, student string, exec ...core.DBExecutor) ([]candidature.Candidature, error) {
	return repo.selectCandidatures(ctx, core.GetExec(repo.exec, exec), "WHERE student = ?", student)
}

func (repo candidatureRepository) RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	db := core.GetExec(repo.exec, exec)
	if _, err := removeByNotice(ctx, db, "documents", protocol); err != nil {
		return 0, err
	}
	return removeByNotice(ctx, db, "candidatures", protocol)
}

type documentRow struct {
	Student        string `db:"student"`
	NoticeProtocol string `db:"notice_protocol"`
	FileName       string `db:"file_name"`
	File           []byte `db:"file"`
}

type documentRepository struct {
	exec core.DBExecutor
}

var _ candidature.DocumentRepository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(exec core.DBExecutor) *documentRepository {
	return &documentRepository{exec: exec}
}

func (repo documentRepository) Create(ctx context.Context, d candidature.Document, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO documents (student, notice_protocol, file_name, file) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), d.Student, d.NoticeProtocol, d.FileName, d.File)
	return trapErr(err, "inserting document", "document", d.FileName)
}

func (repo documentRepository) Update(ctx context.Context, d candidature.Document, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE documents SET file = ? WHERE student = ? AND notice_protocol = ? AND file_name = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), d.File, d.Student, d.NoticeProtocol, d.FileName)
	if err != nil {
		return trapErr(err, "updating document", "document", d.FileName)
	}
	return mustAffect(res, "updating document", "document", d.FileName)
}

func (repo documentRepository) Remove(ctx context.Context, key candidature.Key, fileName string, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM documents WHERE student = ? AND notice_protocol = ? AND file_name = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), key.Student, key.NoticeProtocol, fileName)
	if err != nil {
		return trapErr(err, "deleting document", "document", fileName)
	}
	return mustAffect(res, "deleting document", "document", fileName)
}

func (repo documentRepository) FindByCandidature(ctx context.Context, key candidature.Key, exec ...core.DBExecutor) ([]candidature.Document, error) {
	db := core.GetExec(repo.exec, exec)
	var rows []documentRow
	q := `SELECT student, notice_protocol, file_name, file FROM documents
		WHERE student = ? AND notice_protocol = ? ORDER BY file_name`
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), key.Student, key.NoticeProtocol); err != nil {
		return nil, trapErr(err, "finding documents", "document", key.String())
	}
	docs := make([]candidature.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, candidature.Document(r))
	}
	return docs, nil
}

func (repo documentRepository) RemoveByCandidature(ctx context.Context, key candidature.Key, exec ...core.DBExecutor) (int64, error) {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM documents WHERE student = ? AND notice_protocol = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), key.Student, key.NoticeProtocol)
	if err != nil {
		return 0, trapErr(err, "deleting documents", "document", key.String())
	}
	return rowsAffected(res, "deleting documents")
}
