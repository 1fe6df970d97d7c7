package candidature

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/reconcile"
)

const hydrationLimit = 8

type (
	Service interface {
		Create(ctx context.Context, student string, nc NewCandidature) (Candidature, error)
		// UpdateDocuments reconciles the documents of an Editable candidature.
		UpdateDocuments(ctx context.Context, key Key, uc UpdateCandidature) (Candidature, error)
		SetState(ctx context.Context, key Key, state State) (Candidature, error)
		Remove(ctx context.Context, key Key) (bool, error)
		Exists(ctx context.Context, key Key) (bool, error)
		Get(ctx context.Context, key Key) (Candidature, error)
		FindByNotice(ctx context.Context, protocol string) ([]Candidature, error)
		FindByStudent(ctx context.Context, student string) ([]Candidature, error)
	}

	service struct {
		repo     Repository
		docs     DocumentRepository
		notices  NoticeChecker
		tx       core.Transactor
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	docs DocumentRepository,
	notices NoticeChecker,
	tx core.Transactor,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		docs:     docs,
		notices:  notices,
		tx:       tx,
		validate: validate,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, student string, nc NewCandidature) (Candidature, error) {
	nc.NoticeProtocol = core.CleanString(nc.NoticeProtocol)
	if err := svc.validate.Struct(nc); err != nil {
		return Candidature{}, core.NewValidationError(err)
	}
	key := Key{Student: student, NoticeProtocol: nc.NoticeProtocol}
	key.clean()
	if err := svc.validateDocuments(nc.Documents); err != nil {
		return Candidature{}, err
	}

	exists, err := svc.notices.Exists(ctx, key.NoticeProtocol)
	if err != nil {
		return Candidature{}, errors.Wrap(err, "checking notice")
	}
	if !exists {
		return Candidature{}, core.NewNotFoundError("notice", key.NoticeProtocol)
	}

	c := Candidature{
		Student:        key.Student,
		NoticeProtocol: key.NoticeProtocol,
		State:          StateEditable,
		LastEdit:       core.Now(),
	}
	err = svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if err := svc.repo.Create(ctx, c, exec); err != nil {
			return errors.Wrap(err, "creating candidature")
		}
		actions := reconcile.Plan(nil, withKey(key, nc.Documents), DocumentKey)
		return reconcile.Apply(ctx, actions, svc.documentHandler(key, exec), svc.tx.MaxConcurrency())
	})
	if err != nil {
		return Candidature{}, err
	}
	return svc.Get(ctx, key)
}

func (svc *service) UpdateDocuments(ctx context.Context, key Key, uc UpdateCandidature) (Candidature, error) {
	key.clean()
	if uc.Documents.Present {
		if err := svc.validateDocuments(uc.Documents.Items); err != nil {
			return Candidature{}, err
		}
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		c, err := svc.repo.Get(ctx, key, exec)
		if err != nil {
			return err
		}
		if c.State != StateEditable {
			return &StateError{Op: "edit", Key: key, Current: c.State}
		}

		if uc.Documents.Present {
			persisted, err := svc.docs.FindByCandidature(ctx, key, exec)
			if err != nil {
				return errors.Wrap(err, "loading documents")
			}
			actions := reconcile.Plan(persisted, withKey(key, uc.Documents.Items), DocumentKey)
			if err = reconcile.Apply(ctx, actions, svc.documentHandler(key, exec), svc.tx.MaxConcurrency()); err != nil {
				return err
			}
		}

		c.LastEdit = core.Now()
		return errors.Wrap(svc.repo.Update(ctx, c, exec), "updating candidature")
	})
	if err != nil {
		return Candidature{}, err
	}
	return svc.Get(ctx, key)
}

func (svc *service) SetState(ctx context.Context, key Key, state State) (Candidature, error) {
	key.clean()
	if _, ok := ParseState(string(state)); !ok {
		return Candidature{}, core.NewValidationError(nil, core.FieldError{Field: "state", Error: "unknown candidature state"})
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		c, err := svc.repo.Get(ctx, key, exec)
		if err != nil {
			return err
		}
		if !c.State.CanMoveTo(state) {
			return &StateError{Op: "move to " + string(state), Key: key, Current: c.State}
		}
		c.State = state
		c.LastEdit = core.Now()
		return errors.Wrap(svc.repo.Update(ctx, c, exec), "updating candidature")
	})
	if err != nil {
		return Candidature{}, err
	}
	return svc.Get(ctx, key)
}

func (svc *service) Remove(ctx context.Context, key Key) (bool, error) {
	key.clean()
	var removed bool
	err := svc.tx.WithinTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if _, err := svc.docs.RemoveByCandidature(ctx, key, exec); err != nil {
			return errors.Wrap(err, "removing documents")
		}
		var err error
		removed, err = svc.repo.Remove(ctx, key, exec)
		return errors.Wrap(err, "removing candidature")
	})
	return removed, err
}

func (svc *service) Exists(ctx context.Context, key Key) (bool, error) {
	key.clean()
	return svc.repo.Exists(ctx, key)
}

func (svc *service) Get(ctx context.Context, key Key) (Candidature, error) {
	key.clean()
	c, err := svc.repo.Get(ctx, key)
	if err != nil {
		return Candidature{}, err
	}
	cs := []Candidature{c}
	svc.hydrate(ctx, cs)
	return cs[0], nil
}

func (svc *service) FindByNotice(ctx context.Context, protocol string) ([]Candidature, error) {
	cs, err := svc.repo.FindByNotice(ctx, core.CleanString(protocol))
	if err != nil {
		return nil, err
	}
	svc.hydrate(ctx, cs)
	return cs, nil
}

func (svc *service) FindByStudent(ctx context.Context, student string) ([]Candidature, error) {
	cs, err := svc.repo.FindByStudent(ctx, core.CleanString(student, true /* lower */))
	if err != nil {
		return nil, err
	}
	svc.hydrate(ctx, cs)
	return cs, nil
}

func (svc *service) validateDocuments(docs []Document) error {
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if err := svc.validate.Struct(d); err != nil {
			return core.NewValidationError(err)
		}
		if _, ok := seen[d.FileName]; ok {
			return core.NewValidationError(nil, core.FieldError{Field: "documents", Error: "duplicated file name " + d.FileName})
		}
		seen[d.FileName] = struct{}{}
	}
	return nil
}

func withKey(key Key, docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		d.Student = key.Student
		d.NoticeProtocol = key.NoticeProtocol
		out = append(out, d)
	}
	return out
}

func (svc *service) documentHandler(key Key, exec core.DBExecutor) reconcile.Handler[Document] {
	return reconcile.Handler[Document]{
		Kind: "documents",
		Create: func(ctx context.Context, d Document) error {
			return svc.docs.Create(ctx, d, exec)
		},
		Update: func(ctx context.Context, _, d Document) error {
			return svc.docs.Update(ctx, d, exec)
		},
		Remove: func(ctx context.Context, d Document) error {
			return svc.docs.Remove(ctx, key, d.FileName, exec)
		},
	}
}

// hydrate loads the documents of every candidature concurrently, in place.
func (svc *service) hydrate(ctx context.Context, cs []Candidature) {
	var g errgroup.Group
	g.SetLimit(hydrationLimit)
	for i := range cs {
		c := &cs[i]
		g.Go(func() error {
			docs, err := svc.docs.FindByCandidature(ctx, c.Key())
			if err != nil {
				svc.logger.Warn("hydrating candidature "+c.Key().String()+": loading documents", err)
				c.Documents = []Document{}
				c.DocumentsUnresolved = true
				return nil
			}
			if docs == nil {
				docs = []Document{}
			}
			c.Documents = docs
			return nil
		})
	}
	_ = g.Wait()
}
