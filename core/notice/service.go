package notice

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/assignment"
	"github.com/foureyes/bando/core/reconcile"
)

// hydrationLimit bounds how many notices of a bulk read are hydrated at once.
const hydrationLimit = 8

type (
	// Service keeps a notice and the collections it owns consistent.
	// Every write runs as one unit of work: it is committed entirely or not at all.
	Service interface {
		Create(ctx context.Context, nn NewNotice) (Notice, error)
		Update(ctx context.Context, protocol string, un UpdateNotice) (Notice, error)
		// Remove deletes the notice, its children and its dependents.
		// It reports whether the notice row itself was deleted.
		Remove(ctx context.Context, protocol string) (bool, error)
		Exists(ctx context.Context, protocol string) (bool, error)

		FindByProtocol(ctx context.Context, protocol string) (Notice, error)
		FindByState(ctx context.Context, state State) ([]Notice, error)
		FindByReferent(ctx context.Context, referent string) ([]Notice, error)
		FindAll(ctx context.Context) ([]Notice, error)
		Query(ctx context.Context, filter Filter) ([]Notice, error)

		SetComment(ctx context.Context, c Comment) (Comment, error)
		RemoveComment(ctx context.Context, protocol string) (bool, error)
	}

	service struct {
		repos    Repositories
		tx       core.Transactor
		validate *validator.Validate
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repos Repositories,
	tx core.Transactor,
	validate *validator.Validate,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repos:    repos,
		tx:       tx,
		validate: validate,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, nn NewNotice) (Notice, error) {
	n, err := nn.Build(svc.validate)
	if err != nil {
		return Notice{}, err
	}
	now := core.Now()
	n.CreatedAt, n.UpdatedAt = now, now

	err = svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		exists, err := svc.repos.Notices.Exists(ctx, n.Protocol, exec)
		if err != nil {
			return errors.Wrap(err, "checking protocol")
		}
		if exists {
			return core.NewConflictError("notice", n.Protocol)
		}
		if err = svc.repos.Notices.Create(ctx, n, exec); err != nil {
			return errors.Wrap(err, "creating notice")
		}

		// a brand-new notice has no children: every planned action is a create
		return svc.reconcileChildren(ctx, exec, Notice{}, n, allKinds)
	})
	if err != nil {
		return Notice{}, err
	}
	return svc.FindByProtocol(ctx, n.Protocol)
}

func (svc *service) Update(ctx context.Context, protocol string, un UpdateNotice) (Notice, error) {
	protocol = core.CleanString(protocol)

	var prevState State
	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		curr, err := svc.repos.Notices.Get(ctx, protocol, exec)
		if err != nil {
			return err
		}
		prevState = curr.State
		next, err := un.Build(svc.validate, curr)
		if err != nil {
			return err
		}
		next.UpdatedAt = core.Now()

		if err = svc.repos.Notices.Update(ctx, next, exec); err != nil {
			return errors.Wrap(err, "updating notice")
		}

		kinds := presentKinds(un)
		if len(kinds) == 0 {
			return nil
		}
		persisted, err := svc.loadChildren(ctx, exec, protocol, kinds)
		if err != nil {
			return err
		}
		return svc.reconcileChildren(ctx, exec, persisted, next, kinds)
	})
	if err != nil {
		return Notice{}, err
	}

	n, err := svc.FindByProtocol(ctx, protocol)
	if err != nil {
		return Notice{}, err
	}
	if n.State != prevState {
		svc.notifyState(n)
	}
	return n, nil
}

// notifyState tells the referent professor that the notice changed state. It does not wait for delivery.
func (svc *service) notifyState(n Notice) {
	if n.ReferentProfessor == "" || svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: n.ReferentProfessor}},
		Subject:      fmt.Sprintf("Notice %s is now %s", n.Protocol, n.State),
		BodyStr:      fmt.Sprintf("Notice %s is now %s.", n.Protocol, n.State),
		TemplateName: "notice_state",
		TemplateData: n,
	})
}

func (svc *service) Remove(ctx context.Context, protocol string) (bool, error) {
	protocol = core.CleanString(protocol)

	var removed bool
	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		// dependents first: ratings reference assignments
		for _, dep := range svc.repos.Dependents {
			if _, err := dep.RemoveByNotice(ctx, protocol, exec); err != nil {
				return errors.Wrap(err, "removing dependents")
			}
		}
		if _, err := svc.repos.Comments.Remove(ctx, protocol, exec); err != nil {
			return errors.Wrap(err, "removing comment")
		}
		if _, err := svc.repos.Sheets.Remove(ctx, protocol, exec); err != nil {
			return errors.Wrap(err, "removing application sheet")
		}
		if _, err := svc.repos.Assignments.RemoveByNotice(ctx, protocol, exec); err != nil {
			return errors.Wrap(err, "removing assignments")
		}
		if _, err := svc.repos.Criteria.RemoveByNotice(ctx, protocol, exec); err != nil {
			return errors.Wrap(err, "removing evaluation criteria")
		}
		if _, err := svc.repos.Articles.RemoveByNotice(ctx, protocol, exec); err != nil {
			return errors.Wrap(err, "removing articles")
		}

		var err error
		removed, err = svc.repos.Notices.Remove(ctx, protocol, exec)
		return errors.Wrap(err, "removing notice")
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (svc *service) Exists(ctx context.Context, protocol string) (bool, error) {
	return svc.repos.Notices.Exists(ctx, core.CleanString(protocol))
}

func (svc *service) FindByProtocol(ctx context.Context, protocol string) (Notice, error) {
	n, err := svc.repos.Notices.Get(ctx, core.CleanString(protocol))
	if err != nil {
		return Notice{}, err
	}
	svc.hydrate(ctx, &n)
	return n, nil
}

func (svc *service) FindByState(ctx context.Context, state State) ([]Notice, error) {
	if _, ok := ParseState(string(state)); !ok {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "state", Error: "unknown notice state"})
	}
	return svc.Query(ctx, Filter{State: state})
}

func (svc *service) FindByReferent(ctx context.Context, referent string) ([]Notice, error) {
	referent = core.CleanString(referent, true /* lower */)
	if referent == "" {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "referent", Error: "this field is required"})
	}
	return svc.Query(ctx, Filter{Referent: referent})
}

func (svc *service) FindAll(ctx context.Context) ([]Notice, error) {
	return svc.Query(ctx, Filter{})
}

func (svc *service) Query(ctx context.Context, filter Filter) ([]Notice, error) {
	notices, err := svc.repos.Notices.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.SetLimit(hydrationLimit)
	for i := range notices {
		n := &notices[i]
		g.Go(func() error {
			svc.hydrate(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return notices, nil
}

func (svc *service) SetComment(ctx context.Context, c Comment) (Comment, error) {
	c.NoticeProtocol = core.CleanString(c.NoticeProtocol)
	c.Author = core.CleanString(c.Author, true /* lower */)
	c.Text = core.CleanString(c.Text)
	if err := svc.validate.Struct(c); err != nil {
		return Comment{}, core.NewValidationError(err)
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		exists, err := svc.repos.Notices.Exists(ctx, c.NoticeProtocol, exec)
		if err != nil {
			return errors.Wrap(err, "checking protocol")
		}
		if !exists {
			return core.NewNotFoundError("notice", c.NoticeProtocol)
		}
		return errors.Wrap(svc.repos.Comments.Upsert(ctx, c, exec), "saving comment")
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (svc *service) RemoveComment(ctx context.Context, protocol string) (bool, error) {
	n, err := svc.repos.Comments.Remove(ctx, core.CleanString(protocol))
	if err != nil {
		return false, errors.Wrap(err, "removing comment")
	}
	return n > 0, nil
}

var allKinds = []ChildKind{KindArticles, KindEvaluationCriteria, KindAssignments, KindApplicationSheet}

// presentKinds lists the child kinds an update carries.
func presentKinds(un UpdateNotice) []ChildKind {
	kinds := make([]ChildKind, 0, len(allKinds))
	if un.Articles.Present {
		kinds = append(kinds, KindArticles)
	}
	if un.EvaluationCriteria.Present {
		kinds = append(kinds, KindEvaluationCriteria)
	}
	if un.Assignments.Present {
		kinds = append(kinds, KindAssignments)
	}
	if un.ApplicationSheet != nil {
		kinds = append(kinds, KindApplicationSheet)
	}
	return kinds
}

func hasKind(kinds []ChildKind, k ChildKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// loadChildren reads the persisted children of the given kinds inside the unit of work.
func (svc *service) loadChildren(ctx context.Context, exec core.DBExecutor, protocol string, kinds []ChildKind) (Notice, error) {
	var (
		persisted Notice
		err       error
	)
	if hasKind(kinds, KindArticles) {
		if persisted.Articles, err = svc.repos.Articles.FindByNotice(ctx, protocol, exec); err != nil {
			return Notice{}, errors.Wrap(err, "loading articles")
		}
	}
	if hasKind(kinds, KindEvaluationCriteria) {
		if persisted.EvaluationCriteria, err = svc.repos.Criteria.FindByNotice(ctx, protocol, exec); err != nil {
			return Notice{}, errors.Wrap(err, "loading evaluation criteria")
		}
	}
	if hasKind(kinds, KindAssignments) {
		if persisted.Assignments, err = svc.repos.Assignments.FindByNotice(ctx, protocol, exec); err != nil {
			return Notice{}, errors.Wrap(err, "loading assignments")
		}
	}
	return persisted, nil
}

// reconcileChildren makes the stored children of the given kinds match desired.
// Kinds are reconciled concurrently when the transactor allows it, and every failure is reported.
func (svc *service) reconcileChildren(ctx context.Context, exec core.DBExecutor, persisted, desired Notice, kinds []ChildKind) error {
	limit := svc.tx.MaxConcurrency()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	run := func(fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	if hasKind(kinds, KindArticles) {
		run(func() error {
			actions := reconcile.Plan(persisted.Articles, desired.Articles, ArticleKey)
			logPlan(svc.logger, desired.Protocol, KindArticles, actions)
			return reconcile.Apply(ctx, actions, svc.articleHandler(exec), limit)
		})
	}
	if hasKind(kinds, KindEvaluationCriteria) {
		run(func() error {
			actions := reconcile.Plan(persisted.EvaluationCriteria, desired.EvaluationCriteria, CriterionKey)
			logPlan(svc.logger, desired.Protocol, KindEvaluationCriteria, actions)
			return reconcile.Apply(ctx, actions, svc.criterionHandler(exec), limit)
		})
	}
	if hasKind(kinds, KindAssignments) {
		run(func() error {
			actions := reconcile.Plan(persisted.Assignments, desired.Assignments, assignment.Key)
			logPlan(svc.logger, desired.Protocol, KindAssignments, actions)
			return reconcile.Apply(ctx, actions, svc.assignmentHandler(exec), limit)
		})
	}
	if hasKind(kinds, KindApplicationSheet) && desired.ApplicationSheet != nil {
		run(func() error {
			return errors.Wrap(svc.repos.Sheets.Upsert(ctx, *desired.ApplicationSheet, exec), "saving application sheet")
		})
	}

	_ = g.Wait()
	return errs
}

func logPlan[T any](logger core.Logger, protocol string, kind ChildKind, actions []reconcile.Action[T]) {
	counts := reconcile.Count(actions)
	logger.Debug(fmt.Sprintf("reconciling %s of %s: %d to create, %d to update, %d to remove",
		kind, protocol, counts[reconcile.Create], counts[reconcile.Update], counts[reconcile.Remove]))
}

func (svc *service) articleHandler(exec core.DBExecutor) reconcile.Handler[Article] {
	repo := svc.repos.Articles
	return reconcile.Handler[Article]{
		Kind: string(KindArticles),
		Create: func(ctx context.Context, a Article) error {
			_, err := repo.Create(ctx, a, exec)
			return err
		},
		Update: func(ctx context.Context, _, a Article) error {
			return repo.Update(ctx, a, exec)
		},
		Remove: func(ctx context.Context, a Article) error {
			return repo.Remove(ctx, a.NoticeProtocol, a.Initial, exec)
		},
	}
}

func (svc *service) criterionHandler(exec core.DBExecutor) reconcile.Handler[EvaluationCriterion] {
	repo := svc.repos.Criteria
	return reconcile.Handler[EvaluationCriterion]{
		Kind: string(KindEvaluationCriteria),
		Create: func(ctx context.Context, c EvaluationCriterion) error {
			return repo.Create(ctx, c, exec)
		},
		Update: func(ctx context.Context, _, c EvaluationCriterion) error {
			return repo.Update(ctx, c, exec)
		},
		Remove: func(ctx context.Context, c EvaluationCriterion) error {
			return repo.Remove(ctx, c.NoticeProtocol, c.Name, exec)
		},
	}
}

func (svc *service) assignmentHandler(exec core.DBExecutor) reconcile.Handler[assignment.Assignment] {
	repo := svc.repos.Assignments
	return reconcile.Handler[assignment.Assignment]{
		Kind: string(KindAssignments),
		Create: func(ctx context.Context, a assignment.Assignment) error {
			_, err := repo.Create(ctx, a, exec)
			return err
		},
		// the lifecycle fields stay as they are: only the lifecycle operations move them
		Update: func(ctx context.Context, prev, next assignment.Assignment) error {
			next.ID = prev.ID
			next.State = prev.State
			next.Student = prev.Student
			next.Note = prev.Note
			return repo.Update(ctx, next, exec)
		},
		Remove: func(ctx context.Context, a assignment.Assignment) error {
			return repo.Remove(ctx, a.ID, exec)
		},
	}
}

// hydrate loads every child kind of n concurrently. A kind that cannot be loaded is logged,
// left empty and listed in n.Unresolved.
func (svc *service) hydrate(ctx context.Context, n *Notice) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	fetch := func(kind ChildKind, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				svc.logger.Warn(
					fmt.Sprintf("hydrating notice %q: loading %s", n.Protocol, kind),
					map[string]interface{}{"protocol": n.Protocol, "kind": string(kind)},
					err,
				)
				mu.Lock()
				n.Unresolved = append(n.Unresolved, kind)
				mu.Unlock()
			}
			return nil
		})
	}

	protocol := n.Protocol
	var (
		articles    []Article
		criteria    []EvaluationCriterion
		assignments []assignment.Assignment
		sheet       *ApplicationSheet
		comment     *Comment
	)

	fetch(KindArticles, func() (err error) {
		articles, err = svc.repos.Articles.FindByNotice(ctx, protocol)
		return err
	})
	fetch(KindEvaluationCriteria, func() (err error) {
		criteria, err = svc.repos.Criteria.FindByNotice(ctx, protocol)
		return err
	})
	fetch(KindAssignments, func() (err error) {
		assignments, err = svc.repos.Assignments.FindByNotice(ctx, protocol)
		return err
	})
	fetch(KindApplicationSheet, func() error {
		s, err := svc.repos.Sheets.Get(ctx, protocol)
		if err != nil {
			if core.IsNotFound(err) {
				return nil
			}
			return err
		}
		sheet = &s
		return nil
	})
	fetch(KindComment, func() error {
		c, err := svc.repos.Comments.Get(ctx, protocol)
		if err != nil {
			if core.IsNotFound(err) {
				return nil
			}
			return err
		}
		comment = &c
		return nil
	})
	_ = g.Wait()

	if articles == nil {
		articles = []Article{}
	}
	if criteria == nil {
		criteria = []EvaluationCriterion{}
	}
	if assignments == nil {
		assignments = []assignment.Assignment{}
	}
	n.Articles = articles
	n.EvaluationCriteria = criteria
	n.Assignments = assignments
	n.ApplicationSheet = sheet
	n.Comment = comment
	sort.Slice(n.Unresolved, func(i, j int) bool { return n.Unresolved[i] < n.Unresolved[j] })
}
