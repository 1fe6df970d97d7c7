package dummydb

import (
	"context"
	"sort"
	"strconv"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/notice"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) notice.Repository {
	return &noticeRepository{db: db}
}

// row keeps the scalar columns of n only.
func row(n notice.Notice) notice.Notice {
	return notice.Notice{
		Protocol:  n.Protocol,
		State:     n.State,
		Fields:    n.Fields,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (repo *noticeRepository) Create(_ context.Context, n notice.Notice, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("notices.Create"); err != nil {
		return err
	}

	if _, ok := repo.db.notices[n.Protocol]; ok {
		return core.NewConflictError("notice", n.Protocol)
	}
	repo.db.notices[n.Protocol] = row(n)
	return nil
}

func (repo *noticeRepository) Update(_ context.Context, n notice.Notice, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("notices.Update"); err != nil {
		return err
	}

	orig, ok := repo.db.notices[n.Protocol]
	if !ok {
		return core.NewNotFoundError("notice", n.Protocol)
	}
	n.CreatedAt = orig.CreatedAt
	repo.db.notices[n.Protocol] = row(n)
	return nil
}

// Remove deletes the notice and, like the foreign keys of the SQL schema, everything it owns.
func (repo *noticeRepository) Remove(_ context.Context, protocol string, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("notices.Remove"); err != nil {
		return false, err
	}

	if _, ok := repo.db.notices[protocol]; !ok {
		return false, nil
	}
	delete(repo.db.notices, protocol)
	for id, a := range repo.db.articles {
		if a.NoticeProtocol == protocol {
			delete(repo.db.articles, id)
		}
	}
	for k := range repo.db.criteria {
		if k.protocol == protocol {
			delete(repo.db.criteria, k)
		}
	}
	for id, a := range repo.db.assignments {
		if a.NoticeProtocol == protocol {
			repo.db.removeAssignment(id)
		}
	}
	delete(repo.db.sheets, protocol)
	delete(repo.db.comments, protocol)
	for k := range repo.db.candidatures {
		if k.NoticeProtocol == protocol {
			repo.db.removeCandidature(k)
		}
	}
	return true, nil
}

func (repo *noticeRepository) Get(_ context.Context, protocol string, _ ...core.DBExecutor) (notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("notices.Get"); err != nil {
		return notice.Notice{}, err
	}

	if n, ok := repo.db.notices[protocol]; ok {
		return n, nil
	}
	return notice.Notice{}, core.NewNotFoundError("notice", protocol)
}

func (repo *noticeRepository) Exists(_ context.Context, protocol string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("notices.Exists"); err != nil {
		return false, err
	}

	_, ok := repo.db.notices[protocol]
	return ok, nil
}

func (repo *noticeRepository) Query(_ context.Context, filter notice.Filter, _ ...core.DBExecutor) ([]notice.Notice, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("notices.Query"); err != nil {
		return nil, err
	}

	notices := make([]notice.Notice, 0, len(repo.db.notices))
	for _, n := range repo.db.notices {
		if filter.State != "" && n.State != filter.State {
			continue
		}
		if filter.Referent != "" && n.ReferentProfessor != filter.Referent {
			continue
		}
		notices = append(notices, n)
	}
	sort.Slice(notices, func(i, j int) bool {
		if !notices[i].CreatedAt.Equal(notices[j].CreatedAt) {
			return notices[i].CreatedAt.After(notices[j].CreatedAt)
		}
		return notices[i].Protocol < notices[j].Protocol
	})
	return notices, nil
}

type articleRepository struct {
	db *DB
}

var _ notice.ArticleRepository = (*articleRepository)(nil) // interface compliance check

func NewArticleRepository(db *DB) notice.ArticleRepository {
	return &articleRepository{db: db}
}

func (repo *articleRepository) find(protocol, initial string) (notice.Article, bool) {
	for _, a := range repo.db.articles {
		if a.NoticeProtocol == protocol && a.Initial == initial {
			return a, true
		}
	}
	return notice.Article{}, false
}

func (repo *articleRepository) Create(_ context.Context, a notice.Article, _ ...core.DBExecutor) (notice.Article, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("articles.Create"); err != nil {
		return notice.Article{}, err
	}

	if _, ok := repo.find(a.NoticeProtocol, a.Initial); ok {
		return notice.Article{}, core.NewConflictError("article", a.NoticeProtocol+" "+a.Initial)
	}
	repo.db.articleSeq++
	a.ID = repo.db.articleSeq
	repo.db.articles[a.ID] = a
	return a, nil
}

func (repo *articleRepository) Update(_ context.Context, a notice.Article, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("articles.Update"); err != nil {
		return err
	}

	orig, ok := repo.find(a.NoticeProtocol, a.Initial)
	if !ok {
		return core.NewNotFoundError("article", a.NoticeProtocol+" "+a.Initial)
	}
	orig.Text = a.Text
	repo.db.articles[orig.ID] = orig
	return nil
}

func (repo *articleRepository) Remove(_ context.Context, protocol, initial string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("articles.Remove"); err != nil {
		return err
	}

	orig, ok := repo.find(protocol, initial)
	if !ok {
		return core.NewNotFoundError("article", protocol+" "+initial)
	}
	delete(repo.db.articles, orig.ID)
	return nil
}

func (repo *articleRepository) FindByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) ([]notice.Article, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("articles.FindByNotice"); err != nil {
		return nil, err
	}

	articles := make([]notice.Article, 0)
	for _, a := range repo.db.articles {
		if a.NoticeProtocol == protocol {
			articles = append(articles, a)
		}
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })
	return articles, nil
}

func (repo *articleRepository) RemoveByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("articles.RemoveByNotice"); err != nil {
		return 0, err
	}

	var n int64
	for id, a := range repo.db.articles {
		if a.NoticeProtocol == protocol {
			delete(repo.db.articles, id)
			n++
		}
	}
	return n, nil
}

type criterionRepository struct {
	db *DB
}

var _ notice.CriterionRepository = (*criterionRepository)(nil) // interface compliance check

func NewCriterionRepository(db *DB) notice.CriterionRepository {
	return &criterionRepository{db: db}
}

func (repo *criterionRepository) Create(_ context.Context, c notice.EvaluationCriterion, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("criteria.Create"); err != nil {
		return err
	}

	k := criterionKey{c.NoticeProtocol, c.Name}
	if _, ok := repo.db.criteria[k]; ok {
		return core.NewConflictError("evaluation criterion", c.NoticeProtocol+" "+c.Name)
	}
	repo.db.criteria[k] = c
	return nil
}

func (repo *criterionRepository) Update(_ context.Context, c notice.EvaluationCriterion, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("criteria.Update"); err != nil {
		return err
	}

	k := criterionKey{c.NoticeProtocol, c.Name}
	if _, ok := repo.db.criteria[k]; !ok {
		return core.NewNotFoundError("evaluation criterion", c.NoticeProtocol+" "+c.Name)
	}
	repo.db.criteria[k] = c
	return nil
}

func (repo *criterionRepository) Remove(_ context.Context, protocol, name string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("criteria.Remove"); err != nil {
		return err
	}

	k := criterionKey{protocol, name}
	if _, ok := repo.db.criteria[k]; !ok {
		return core.NewNotFoundError("evaluation criterion", protocol+" "+name)
	}
	delete(repo.db.criteria, k)
	return nil
}

func (repo *criterionRepository) FindByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) ([]notice.EvaluationCriterion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("criteria.FindByNotice"); err != nil {
		return nil, err
	}

	criteria := make([]notice.EvaluationCriterion, 0)
	for k, c := range repo.db.criteria {
		if k.protocol == protocol {
			criteria = append(criteria, c)
		}
	}
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].Name < criteria[j].Name })
	return criteria, nil
}

func (repo *criterionRepository) RemoveByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("criteria.RemoveByNotice"); err != nil {
		return 0, err
	}

	var n int64
	for k := range repo.db.criteria {
		if k.protocol == protocol {
			delete(repo.db.criteria, k)
			n++
		}
	}
	return n, nil
}

type applicationSheetRepository struct {
	db *DB
}

var _ notice.ApplicationSheetRepository = (*applicationSheetRepository)(nil) // interface compliance check

func NewApplicationSheetRepository(db *DB) notice.ApplicationSheetRepository {
	return &applicationSheetRepository{db: db}
}

func (repo *applicationSheetRepository) Upsert(_ context.Context, s notice.ApplicationSheet, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("sheets.Upsert"); err != nil {
		return err
	}
	repo.db.sheets[s.NoticeProtocol] = s
	return nil
}

func (repo *applicationSheetRepository) Get(_ context.Context, protocol string, _ ...core.DBExecutor) (notice.ApplicationSheet, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("sheets.Get"); err != nil {
		return notice.ApplicationSheet{}, err
	}

	if s, ok := repo.db.sheets[protocol]; ok {
		return s, nil
	}
	return notice.ApplicationSheet{}, core.NewNotFoundError("application sheet", protocol)
}

func (repo *applicationSheetRepository) Remove(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("sheets.Remove"); err != nil {
		return 0, err
	}

	if _, ok := repo.db.sheets[protocol]; !ok {
		return 0, nil
	}
	delete(repo.db.sheets, protocol)
	return 1, nil
}

type commentRepository struct {
	db *DB
}

var _ notice.CommentRepository = (*commentRepository)(nil) // interface compliance check

func NewCommentRepository(db *DB) notice.CommentRepository {
	return &commentRepository{db: db}
}

func (repo *commentRepository) Upsert(_ context.Context, c notice.Comment, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("comments.Upsert"); err != nil {
		return err
	}
	repo.db.comments[c.NoticeProtocol] = c
	return nil
}

func (repo *commentRepository) Get(_ context.Context, protocol string, _ ...core.DBExecutor) (notice.Comment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("comments.Get"); err != nil {
		return notice.Comment{}, err
	}

	if c, ok := repo.db.comments[protocol]; ok {
		return c, nil
	}
	return notice.Comment{}, core.NewNotFoundError("comment", protocol)
}

func (repo *commentRepository) Remove(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("comments.Remove"); err != nil {
		return 0, err
	}

	if _, ok := repo.db.comments[protocol]; !ok {
		return 0, nil
	}
	delete(repo.db.comments, protocol)
	return 1, nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
