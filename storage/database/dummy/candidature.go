package dummydb

import (
	"context"
	"sort"

	"github.com/foureyes/bando/core"
	"github.com/foureyes/bando/core/candidature"
)

type candidatureRepository struct {
	db *DB
}

var _ candidature.Repository = (*candidatureRepository)(nil) // interface compliance check

func NewCandidatureRepository(db *DB) candidature.Repository {
	return &candidatureRepository{db: db}
}

// removeCandidature deletes a candidature with its documents. The lock must be held.
func (db *DB) removeCandidature(key candidature.Key) {
	delete(db.candidatures, key)
	for k := range db.documents {
		if k.Key == key {
			delete(db.documents, k)
		}
	}
}

func (repo *candidatureRepository) Create(_ context.Context, c candidature.Candidature, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("candidatures.Create"); err != nil {
		return err
	}

	if _, ok := repo.db.candidatures[c.Key()]; ok {
		return core.NewConflictError("candidature", c.Key().String())
	}
	c.Documents = nil
	repo.db.candidatures[c.Key()] = c
	return nil
}

func (repo *candidatureRepository) Update(_ context.Context, c candidature.Candidature, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("candidatures.Update"); err != nil {
		return err
	}

	orig, ok := repo.db.candidatures[c.Key()]
	if !ok {
		return core.NewNotFoundError("candidature", c.Key().String())
	}
	orig.State = c.State
	orig.LastEdit = c.LastEdit
	repo.db.candidatures[c.Key()] = orig
	return nil
}

func (repo *candidatureRepository) Remove(_ context.Context, key candidature.Key, _ ...core.DBExecutor) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("candidatures.Remove"); err != nil {
		return false, err
	}

	if _, ok := repo.db.candidatures[key]; !ok {
		return false, nil
	}
	repo.db.removeCandidature(key)
	return true, nil
}

func (repo *candidatureRepository) Exists(_ context.Context, key candidature.Key, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("candidatures.Exists"); err != nil {
		return false, err
	}

	_, ok := repo.db.candidatures[key]
	return ok, nil
}

func (repo *candidatureRepository) Get(_ context.Context, key candidature.Key, _ ...core.DBExecutor) (candidature.Candidature, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("candidatures.Get"); err != nil {
		return candidature.Candidature{}, err
	}

	if c, ok := repo.db.candidatures[key]; ok {
		return c, nil
	}
	return candidature.Candidature{}, core.NewNotFoundError("candidature", key.String())
}

func (repo *candidatureRepository) find(op string, keep func(candidature.Candidature) bool) ([]candidature.Candidature, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault(op); err != nil {
		return nil, err
	}

	cs := make([]candidature.Candidature, 0)
	for _, c := range repo.db.candidatures {
		if keep(c) {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].LastEdit.After(cs[j].LastEdit) })
	return cs, nil
}

func (repo *candidatureRepository) FindByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) ([]candidature.Candidature, error) {
	return repo.find("candidatures.FindByNotice", func(c candidature.Candidature) bool { return c.NoticeProtocol == protocol })
}

func (repo *candidatureRepository) FindByStudent(_ context.Context, student string, _ ...core.DBExecutor) ([]candidature.Candidature, error) {
	return repo.find("candidatures.FindByStudent", func(c candidature.Candidature) bool { return c.Student == student })
}

func (repo *candidatureRepository) RemoveByNotice(_ context.Context, protocol string, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("candidatures.RemoveByNotice"); err != nil {
		return 0, err
	}

	var n int64
	for k := range repo.db.candidatures {
		if k.NoticeProtocol == protocol {
			repo.db.removeCandidature(k)
			n++
		}
	}
	return n, nil
}

type documentRepository struct {
	db *DB
}

var _ candidature.DocumentRepository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *DB) candidature.DocumentRepository {
	return &documentRepository{db: db}
}

func docKey(d candidature.Document) documentKey {
	return documentKey{Key: candidature.Key{Student: d.Student, NoticeProtocol: d.NoticeProtocol}, fileName: d.FileName}
}

func (repo *documentRepository) Create(_ context.Context, d candidature.Document, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("documents.Create"); err != nil {
		return err
	}

	k := docKey(d)
	if _, ok := repo.db.candidatures[k.Key]; !ok {
		return core.NewNotFoundError("candidature", k.Key.String())
	}
	if _, ok := repo.db.documents[k]; ok {
		return core.NewConflictError("document", d.FileName)
	}
	repo.db.documents[k] = d
	return nil
}

func (repo *documentRepository) Update(_ context.Context, d candidature.Document, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("documents.Update"); err != nil {
		return err
	}

	k := docKey(d)
	if _, ok := repo.db.documents[k]; !ok {
		return core.NewNotFoundError("document", d.FileName)
	}
	repo.db.documents[k] = d
	return nil
}

func (repo *documentRepository) Remove(_ context.Context, key candidature.Key, fileName string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("documents.Remove"); err != nil {
		return err
	}

	k := documentKey{Key: key, fileName: fileName}
	if _, ok := repo.db.documents[k]; !ok {
		return core.NewNotFoundError("document", fileName)
	}
	delete(repo.db.documents, k)
	return nil
}

func (repo *documentRepository) FindByCandidature(_ context.Context, key candidature.Key, _ ...core.DBExecutor) ([]candidature.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if err := repo.db.fault("documents.FindByCandidature"); err != nil {
		return nil, err
	}

	docs := make([]candidature.Document, 0)
	for k, d := range repo.db.documents {
		if k.Key == key {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].FileName < docs[j].FileName })
	return docs, nil
}

func (repo *documentRepository) RemoveByCandidature(_ context.Context, key candidature.Key, _ ...core.DBExecutor) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	if err := repo.db.fault("documents.RemoveByCandidature"); err != nil {
		return 0, err
	}

	var n int64
	for k := range repo.db.documents {
		if k.Key == key {
			delete(repo.db.documents, k)
			n++
		}
	}
	return n, nil
}
