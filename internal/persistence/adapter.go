// Package persistence routes document writes to the authoritative remote
// store, falling back to the local snapshot cache when the remote is
// unreachable. Reads merge both tiers, deduplicating by id with the
// remote copy winning.
package persistence

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
)

// Document is anything the adapter can persist.
type Document interface {
	DocumentID() uuid.UUID
	TableName() string
}

// syncMarker lets the adapter tag copies written to the fallback tier.
type syncMarker interface {
	SetPendingSync(bool)
}

// WriteResult reports which tier actually stored the document.
type WriteResult struct {
	Stored enums.StorageTier
}

// Filter matches a document field (by column / json name) to a value.
type Filter struct {
	Field string
	Value any
}

// FindOptions shape a FindAll query. OrderBy names a column; Desc flips
// direction. Zero Limit means unbounded.
type FindOptions struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Patch is a partial update keyed by column name.
type Patch map[string]any

const probeTimeout = 2 * time.Second

type Adapter struct {
	remote  *gorm.DB // nil when the deployment runs local-only
	local   *localstore.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewAdapter(remote *gorm.DB, local *localstore.Store, log *logger.Logger, m *metrics.Metrics) *Adapter {
	return &Adapter{remote: remote, local: local, log: log, metrics: m}
}

// Available reports whether the remote tier is reachable right now.
func (a *Adapter) Available(ctx context.Context) bool {
	if a.remote == nil {
		return false
	}
	sqlDB, err := a.remote.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

// Insert writes doc remote-first. When the remote write fails because
// the store is unreachable the doc is appended to the local collection
// snapshot tagged pending_sync, and the result reports the local tier.
// A duplicate id is a conflict, never a reason to degrade. Both tiers
// failing is a dependency error.
func (a *Adapter) Insert(ctx context.Context, doc Document) (WriteResult, error) {
	if a.remote != nil {
		err := a.remote.WithContext(ctx).Table(doc.TableName()).Create(doc).Error
		if err == nil {
			a.metrics.PersistenceWrite(doc.TableName(), enums.StorageTierRemote.String())
			// Mirror into the snapshot so reads survive a later outage.
			if lerr := a.appendLocal(ctx, doc, false); lerr != nil {
				a.log.Warn(ctx, fmt.Sprintf("mirroring %s to local store failed: %v", doc.TableName(), lerr))
			}
			return WriteResult{Stored: enums.StorageTierRemote}, nil
		}
		if stdErrors.Is(err, gorm.ErrDuplicatedKey) || errors.IsUniqueViolation(err) {
			return WriteResult{}, errors.Wrap(errors.CodeConflict, err,
				fmt.Sprintf("%s document already exists", doc.TableName()))
		}
		a.log.Warn(ctx, fmt.Sprintf("remote insert into %s failed, degrading to local: %v", doc.TableName(), err))
	}

	if err := a.appendLocal(ctx, doc, true); err != nil {
		return WriteResult{}, errors.Wrap(errors.CodeDependency, err, "both storage tiers rejected the write")
	}
	a.metrics.PersistenceWrite(doc.TableName(), enums.StorageTierLocal.String())
	return WriteResult{Stored: enums.StorageTierLocal}, nil
}

// InsertMany writes docs one by one into the same collection. The result
// reports the local tier if any document degraded.
func (a *Adapter) InsertMany(ctx context.Context, docs []Document) (WriteResult, error) {
	result := WriteResult{Stored: enums.StorageTierRemote}
	for _, doc := range docs {
		res, err := a.Insert(ctx, doc)
		if err != nil {
			return WriteResult{}, err
		}
		if res.Stored == enums.StorageTierLocal {
			result.Stored = enums.StorageTierLocal
		}
	}
	return result, nil
}

// Update applies patch to the document with id in table, remote-first,
// then keeps the local snapshot copy in step. A remote failure degrades
// to a local-only patch tagged pending_sync.
func (a *Adapter) Update(ctx context.Context, table string, id uuid.UUID, patch Patch) (WriteResult, error) {
	remoteOK := false
	if a.remote != nil {
		err := a.remote.WithContext(ctx).Table(table).Where("id = ?", id).Updates(map[string]any(patch)).Error
		if err == nil {
			remoteOK = true
		} else {
			a.log.Warn(ctx, fmt.Sprintf("remote update of %s failed, degrading to local: %v", table, err))
		}
	}

	if err := a.patchLocal(ctx, table, id, patch, !remoteOK); err != nil {
		if remoteOK {
			a.log.Warn(ctx, fmt.Sprintf("local patch of %s failed: %v", table, err))
			return WriteResult{Stored: enums.StorageTierRemote}, nil
		}
		if errors.HasCode(err, errors.CodeNotFound) {
			return WriteResult{}, err
		}
		return WriteResult{}, errors.Wrap(errors.CodeDependency, err, "both storage tiers rejected the update")
	}

	if remoteOK {
		a.metrics.PersistenceWrite(table, enums.StorageTierRemote.String())
		return WriteResult{Stored: enums.StorageTierRemote}, nil
	}
	a.metrics.PersistenceWrite(table, enums.StorageTierLocal.String())
	return WriteResult{Stored: enums.StorageTierLocal}, nil
}

// Delete removes the document from both tiers. Used by checkout
// compensation; a remote delete failure is surfaced, a local miss is not.
func (a *Adapter) Delete(ctx context.Context, table string, id uuid.UUID) error {
	if a.remote != nil {
		err := a.remote.WithContext(ctx).Table(table).Where("id = ?", id).Delete(nil).Error
		if err != nil {
			return errors.Wrap(errors.CodeDependency, err, "remote delete failed")
		}
	}
	if err := a.removeLocal(ctx, table, id); err != nil {
		a.log.Warn(ctx, fmt.Sprintf("local delete from %s failed: %v", table, err))
	}
	return nil
}

// FindAll loads every matching document from both tiers and merges them.
// When the same id exists in both, the remote copy wins.
func FindAll[T Document](ctx context.Context, a *Adapter, opts FindOptions) ([]T, error) {
	var zero T
	table := zero.TableName()

	byID := map[uuid.UUID]T{}
	var order []uuid.UUID

	locals, err := loadLocal[T](ctx, a, table)
	if err != nil {
		a.log.Warn(ctx, fmt.Sprintf("reading local snapshot of %s failed: %v", table, err))
	}
	for _, doc := range locals {
		if !matches(doc, opts.Filters) {
			continue
		}
		id := doc.DocumentID()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = doc
	}

	if a.remote != nil {
		var remotes []T
		q := a.remote.WithContext(ctx).Table(table)
		for _, f := range opts.Filters {
			q = q.Where(fmt.Sprintf("%s = ?", f.Field), f.Value)
		}
		if err := q.Find(&remotes).Error; err != nil {
			if len(byID) == 0 {
				return nil, errors.Wrap(errors.CodeDependency, err, "remote read failed with no local fallback")
			}
			a.log.Warn(ctx, fmt.Sprintf("remote read of %s failed, serving local snapshot: %v", table, err))
		}
		for _, doc := range remotes {
			id := doc.DocumentID()
			if _, seen := byID[id]; !seen {
				order = append(order, id)
			}
			byID[id] = doc
		}
	}

	merged := make([]T, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}

	if opts.OrderBy != "" {
		sortDocs(merged, opts.OrderBy, opts.Desc)
	}
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// FindOne returns the single matching document or a not-found error.
func FindOne[T Document](ctx context.Context, a *Adapter, filters ...Filter) (T, error) {
	var zero T
	docs, err := FindAll[T](ctx, a, FindOptions{Filters: filters, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(docs) == 0 {
		return zero, errors.New(errors.CodeNotFound, "document not found")
	}
	return docs[0], nil
}
