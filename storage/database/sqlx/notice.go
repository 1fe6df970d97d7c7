package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/notice"
)

const noticeColumns = `protocol, referent_professor, description, notice_subject, admission_requirements,
	assessable_titles, how_to_submit_applications, selection_board, acceptance, incompatibility,
	termination_of_the_assignment, nature_of_the_assignment, unused_funds, responsible_for_the_procedure,
	notice_funds, type, deadline, notice_file, graded_list_file, state, created_at, updated_at`

type noticeRow struct {
	Protocol                   string       `db:"protocol"`
	ReferentProfessor          null.String  `db:"referent_professor"`
	Description                null.String  `db:"description"`
	NoticeSubject              null.String  `db:"notice_subject"`
	AdmissionRequirements      null.String  `db:"admission_requirements"`
	AssessableTitles           null.String  `db:"assessable_titles"`
	HowToSubmitApplications    null.String  `db:"how_to_submit_applications"`
	SelectionBoard             null.String  `db:"selection_board"`
	Acceptance                 null.String  `db:"acceptance"`
	Incompatibility            null.String  `db:"incompatibility"`
	TerminationOfTheAssignment null.String  `db:"termination_of_the_assignment"`
	NatureOfTheAssignment      null.String  `db:"nature_of_the_assignment"`
	UnusedFunds                null.String  `db:"unused_funds"`
	ResponsibleForTheProcedure null.String  `db:"responsible_for_the_procedure"`
	NoticeFunds                null.Float64 `db:"notice_funds"`
	Type                       null.String  `db:"type"`
	Deadline                   null.Time    `db:"deadline"`
	NoticeFile                 null.String  `db:"notice_file"`
	GradedListFile             null.String  `db:"graded_list_file"`
	State                      null.String  `db:"state"`
	CreatedAt                  time.Time    `db:"created_at"`
	UpdatedAt                  time.Time    `db:"updated_at"`
}

func (r noticeRow) args() []interface{} {
	return []interface{}{
		r.Protocol, r.ReferentProfessor, r.Description, r.NoticeSubject, r.AdmissionRequirements,
		r.AssessableTitles, r.HowToSubmitApplications, r.SelectionBoard, r.Acceptance, r.Incompatibility,
		r.TerminationOfTheAssignment, r.NatureOfTheAssignment, r.UnusedFunds, r.ResponsibleForTheProcedure,
		r.NoticeFunds, r.Type, r.Deadline, r.NoticeFile, r.GradedListFile, r.State, r.CreatedAt, r.UpdatedAt,
	}
}

type noticeRepository struct {
	exec core.DBExecutor
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(exec core.DBExecutor) *noticeRepository {
	return &noticeRepository{exec: exec}
}

func (repo noticeRepository) row(n notice.Notice) noticeRow {
	return noticeRow{
		Protocol:                   n.Protocol,
		ReferentProfessor:          nullString(n.ReferentProfessor),
		Description:                nullString(n.Description),
		NoticeSubject:              nullString(n.NoticeSubject),
		AdmissionRequirements:      nullString(n.AdmissionRequirements),
		AssessableTitles:           nullString(n.AssessableTitles),
		HowToSubmitApplications:    nullString(n.HowToSubmitApplications),
		SelectionBoard:             nullString(n.SelectionBoard),
		Acceptance:                 nullString(n.Acceptance),
		Incompatibility:            nullString(n.Incompatibility),
		TerminationOfTheAssignment: nullString(n.TerminationOfTheAssignment),
		NatureOfTheAssignment:      nullString(n.NatureOfTheAssignment),
		UnusedFunds:                nullString(n.UnusedFunds),
		ResponsibleForTheProcedure: nullString(n.ResponsibleForTheProcedure),
		NoticeFunds:                null.Float64FromPtr(n.NoticeFunds),
		Type:                       nullString(n.Type),
		Deadline:                   nullDate(n.Deadline),
		NoticeFile:                 nullString(n.NoticeFile),
		GradedListFile:             nullString(n.GradedListFile),
		State:                      nullString(string(n.State)),
		CreatedAt:                  n.CreatedAt.UTC(),
		UpdatedAt:                  n.UpdatedAt.UTC(),
	}
}

func (repo noticeRepository) unrow(r noticeRow) notice.Notice {
	return notice.Notice{
		Protocol: r.Protocol,
		State:    notice.State(r.State.String),
		Fields: notice.Fields{
			ReferentProfessor:          r.ReferentProfessor.String,
			Description:                r.Description.String,
			NoticeSubject:              r.NoticeSubject.String,
			AdmissionRequirements:      r.AdmissionRequirements.String,
			AssessableTitles:           r.AssessableTitles.String,
			HowToSubmitApplications:    r.HowToSubmitApplications.String,
			SelectionBoard:             r.SelectionBoard.String,
			Acceptance:                 r.Acceptance.String,
			Incompatibility:            r.Incompatibility.String,
			TerminationOfTheAssignment: r.TerminationOfTheAssignment.String,
			NatureOfTheAssignment:      r.NatureOfTheAssignment.String,
			UnusedFunds:                r.UnusedFunds.String,
			ResponsibleForTheProcedure: r.ResponsibleForTheProcedure.String,
			NoticeFunds:                r.NoticeFunds.Ptr(),
			Type:                       r.Type.String,
			Deadline:                   dateString(r.Deadline),
			NoticeFile:                 r.NoticeFile.String,
			GradedListFile:             r.GradedListFile.String,
		},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo noticeRepository) Create(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO notices (` + noticeColumns + `) VALUES (?` + strings.Repeat(", ?", 21) + `)`
	_, err := db.ExecContext(ctx, db.Rebind(q), repo.row(n).args()...)
	return trapErr(err, "inserting notice", "notice", n.Protocol)
}

func (repo noticeRepository) Update(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	r := repo.row(n)
	q := `UPDATE notices SET referent_professor = ?, description = ?, notice_subject = ?,
		admission_requirements = ?, assessable_titles = ?, how_to_submit_applications = ?,
		selection_board = ?, acceptance = ?, incompatibility = ?, termination_of_the_assignment = ?,
		nature_of_the_assignment = ?, unused_funds = ?, responsible_for_the_procedure = ?,
		notice_funds = ?, type = ?, deadline = ?, notice_file = ?, graded_list_file = ?,
		state = ?, updated_at = ?
		WHERE protocol = ?`
	args := r.args()
	// every column but protocol and created_at, then the protocol
	args = append(args[1:len(args)-2], r.UpdatedAt, r.Protocol)
	res, err := db.ExecContext(ctx, db.Rebind(q), args...)
	if err != nil {
		return trapErr(err, "updating notice", "notice", n.Protocol)
	}
	cnt, err := rowsAffected(res, "updating notice")
	if err != nil {
		return err
	}
	if cnt == 0 {
		return core.NewNotFoundError("notice", n.Protocol)
	}
	return nil
}

func (repo noticeRepository) Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM notices WHERE protocol = ?`), protocol)
	if err != nil {
		return false, trapErr(err, "deleting notice", "notice", protocol)
	}
	cnt, err := rowsAffected(res, "deleting notice")
	return cnt == 1, err
}

func (repo noticeRepository) Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (notice.Notice, error) {
	db := core.GetExec(repo.exec, exec)
	var r noticeRow
	q := `SELECT ` + noticeColumns + ` FROM notices WHERE protocol = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), protocol); err != nil {
		return notice.Notice{}, trapErr(err, "getting notice", "notice", protocol)
	}
	return repo.unrow(r), nil
}

func (repo noticeRepository) Exists(ctx context.Context, protocol string, exec ...core.DBExecutor) (bool, error) {
	db := core.GetExec(repo.exec, exec)
	var cnt int
	q := `SELECT COUNT(*) FROM notices WHERE protocol = ?`
	if err := sqlx.GetContext(ctx, db, &cnt, db.Rebind(q), protocol); err != nil {
		return false, trapErr(err, "checking notice", "notice", protocol)
	}
	return cnt > 0, nil
}

func (repo noticeRepository) Query(ctx context.Context, filter notice.Filter, exec ...core.DBExecutor) ([]notice.Notice, error) {
	db := core.GetExec(repo.exec, exec)

	var (
		where []string
		args  []interface{}
	)
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Referent != "" {
		where = append(where, "referent_professor = ?")
		args = append(args, filter.Referent)
	}

	q := `SELECT ` + noticeColumns + ` FROM notices`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, protocol ASC"

	var rows []noticeRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "querying notices", "notice", "")
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, repo.unrow(r))
	}
	return notices, nil
}

type (
	articleRow struct {
		ID             int64  `db:"id"`
		NoticeProtocol string `db:"notice_protocol"`
		Initial        string `db:"initial"`
		Text           string `db:"text"`
	}
	criterionRow struct {
		NoticeProtocol string `db:"notice_protocol"`
		Name           string `db:"name"`
		MaxScore       int    `db:"max_score"`
	}
	applicationSheetRow struct {
		NoticeProtocol    string `db:"notice_protocol"`
		DocumentsToAttach string `db:"documents_to_attach"`
	}
	commentRow struct {
		NoticeProtocol string `db:"notice_protocol"`
		Author         string `db:"author"`
		Text           string `db:"text"`
	}
)

type articleRepository struct {
	exec core.DBExecutor
}

var _ notice.ArticleRepository = (*articleRepository)(nil) // interface compliance check

func NewArticleRepository(exec core.DBExecutor) *articleRepository {
	return &articleRepository{exec: exec}
}

func (repo articleRepository) Create(ctx context.Context, a notice.Article, exec ...core.DBExecutor) (notice.Article, error) {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO articles (notice_protocol, initial, text) VALUES (?, ?, ?) RETURNING id`
	if err := sqlx.GetContext(ctx, db, &a.ID, db.Rebind(q), a.NoticeProtocol, a.Initial, a.Text); err != nil {
		return notice.Article{}, trapErr(err, "inserting article", "article", a.NoticeProtocol+" "+a.Initial)
	}
	return a, nil
}

func (repo articleRepository) Update(ctx context.Context, a notice.Article, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE articles SET text = ? WHERE notice_protocol = ? AND initial = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), a.Text, a.NoticeProtocol, a.Initial)
	if err != nil {
		return trapErr(err, "updating article", "article", a.NoticeProtocol+" "+a.Initial)
	}
	return mustAffect(res, "updating article", "article", a.NoticeProtocol+" "+a.Initial)
}

func (repo articleRepository) Remove(ctx context.Context, protocol, initial string, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM articles WHERE notice_protocol = ? AND initial = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), protocol, initial)
	if err != nil {
		return trapErr(err, "deleting article", "article", protocol+" "+initial)
	}
	return mustAffect(res, "deleting article", "article", protocol+" "+initial)
}

func (repo articleRepository) FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]notice.Article, error) {
	db := core.GetExec(repo.exec, exec)
	var rows []articleRow
	q := `SELECT id, notice_protocol, initial, text FROM articles WHERE notice_protocol = ? ORDER BY id`
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), protocol); err != nil {
		return nil, trapErr(err, "finding articles", "article", protocol)
	}
	articles := make([]notice.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, notice.Article(r))
	}
	return articles, nil
}

func (repo articleRepository) RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	return removeByNotice(ctx, core.GetExec(repo.exec, exec), "articles", protocol)
}

type criterionRepository struct {
	exec core.DBExecutor
}

var _ notice.CriterionRepository = (*criterionRepository)(nil) // interface compliance check

func NewCriterionRepository(exec core.DBExecutor) *criterionRepository {
	return &criterionRepository{exec: exec}
}

func (repo criterionRepository) Create(ctx context.Context, c notice.EvaluationCriterion, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO evaluation_criteria (notice_protocol, name, max_score) VALUES (?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.NoticeProtocol, c.Name, c.MaxScore)
	return trapErr(err, "inserting evaluation criterion", "evaluation criterion", c.NoticeProtocol+" "+c.Name)
}

func (repo criterionRepository) Update(ctx context.Context, c notice.EvaluationCriterion, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `UPDATE evaluation_criteria SET max_score = ? WHERE notice_protocol = ? AND name = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), c.MaxScore, c.NoticeProtocol, c.Name)
	if err != nil {
		return trapErr(err, "updating evaluation criterion", "evaluation criterion", c.NoticeProtocol+" "+c.Name)
	}
	return mustAffect(res, "updating evaluation criterion", "evaluation criterion", c.NoticeProtocol+" "+c.Name)
}

func (repo criterionRepository) Remove(ctx context.Context, protocol, name string, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `DELETE FROM evaluation_criteria WHERE notice_protocol = ? AND name = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), protocol, name)
	if err != nil {
		return trapErr(err, "deleting evaluation criterion", "evaluation criterion", protocol+" "+name)
	}
	return mustAffect(res, "deleting evaluation criterion", "evaluation criterion", protocol+" "+name)
}

func (repo criterionRepository) FindByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) ([]notice.EvaluationCriterion, error) {
	db := core.GetExec(repo.exec, exec)
	var rows []criterionRow
	q := `SELECT notice_protocol, name, max_score FROM evaluation_criteria WHERE notice_protocol = ? ORDER BY name`
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), protocol); err != nil {
		return nil, trapErr(err, "finding evaluation criteria", "evaluation criterion", protocol)
	}
	criteria := make([]notice.EvaluationCriterion, 0, len(rows))
	for _, r := range rows {
		criteria = append(criteria, notice.EvaluationCriterion(r))
	}
	return criteria, nil
}

func (repo criterionRepository) RemoveByNotice(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	return removeByNotice(ctx, core.GetExec(repo.exec, exec), "evaluation_criteria", protocol)
}

type applicationSheetRepository struct {
	exec core.DBExecutor
}

var _ notice.ApplicationSheetRepository = (*applicationSheetRepository)(nil) // interface compliance check

func NewApplicationSheetRepository(exec core.DBExecutor) *applicationSheetRepository {
	return &applicationSheetRepository{exec: exec}
}

func (repo applicationSheetRepository) Upsert(ctx context.Context, s notice.ApplicationSheet, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO application_sheets (notice_protocol, documents_to_attach) VALUES (?, ?)
		ON CONFLICT (notice_protocol) DO UPDATE SET documents_to_attach = excluded.documents_to_attach`
	_, err := db.ExecContext(ctx, db.Rebind(q), s.NoticeProtocol, s.DocumentsToAttach)
	return trapErr(err, "saving application sheet", "application sheet", s.NoticeProtocol)
}

func (repo applicationSheetRepository) Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (notice.ApplicationSheet, error) {
	db := core.GetExec(repo.exec, exec)
	var r applicationSheetRow
	q := `SELECT notice_protocol, documents_to_attach FROM application_sheets WHERE notice_protocol = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), protocol); err != nil {
		return notice.ApplicationSheet{}, trapErr(err, "getting application sheet", "application sheet", protocol)
	}
	return notice.ApplicationSheet(r), nil
}

func (repo applicationSheetRepository) Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	return removeByNotice(ctx, core.GetExec(repo.exec, exec), "application_sheets", protocol)
}

type commentRepository struct {
	exec core.DBExecutor
}

var _ notice.CommentRepository = (*commentRepository)(nil) // interface compliance check

func NewCommentRepository(exec core.DBExecutor) *commentRepository {
	return &commentRepository{exec: exec}
}

func (repo commentRepository) Upsert(ctx context.Context, c notice.Comment, exec ...core.DBExecutor) error {
	db := core.GetExec(repo.exec, exec)
	q := `INSERT INTO comments (notice_protocol, author, text) VALUES (?, ?, ?)
		ON CONFLICT (notice_protocol) DO UPDATE SET author = excluded.author, text = excluded.text`
	_, err := db.ExecContext(ctx, db.Rebind(q), c.NoticeProtocol, c.Author, c.Text)
	return trapErr(err, "saving comment", "comment", c.NoticeProtocol)
}

func (repo commentRepository) Get(ctx context.Context, protocol string, exec ...core.DBExecutor) (notice.Comment, error) {
	db := core.GetExec(repo.exec, exec)
	var r commentRow
	q := `SELECT notice_protocol, author, text FROM comments WHERE notice_protocol = ?`
	if err := sqlx.GetContext(ctx, db, &r, db.Rebind(q), protocol); err != nil {
		return notice.Comment{}, trapErr(err, "getting comment", "comment", protocol)
	}
	return notice.Comment(r), nil
}

func (repo commentRepository) Remove(ctx context.Context, protocol string, exec ...core.DBExecutor) (int64, error) {
	return removeByNotice(ctx, core.GetExec(repo.exec, exec), "comments", protocol)
}

// removeByNotice deletes the rows of table that belong to the notice.
func removeByNotice(ctx context.Context, db core.DBExecutor, table, protocol string) (int64, error) {
	op := "deleting " + table
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM `+table+` WHERE notice_protocol = ?`), protocol)
	if err != nil {
		return 0, trapErr(err, op, table, protocol)
	}
	return rowsAffected(res, op)
}

// mustAffect fails with *core.NotFoundError when res changed no row.
func mustAffect(res sql.Result, op, entity, key string) error {
	n, err := rowsAffected(res, op)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NewNotFoundError(entity, key)
	}
	return nil
}
