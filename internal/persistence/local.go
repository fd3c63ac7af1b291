package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// idProbe extracts the id from a raw snapshot entry without knowing
// the full document shape.
type idProbe struct {
	ID uuid.UUID `json:"id"`
}

func (a *Adapter) loadRaw(ctx context.Context, table string) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if _, err := a.local.Load(ctx, localstore.CollectionKey(table), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (a *Adapter) saveRaw(ctx context.Context, table string, raw []json.RawMessage) error {
	return a.local.Save(ctx, localstore.CollectionKey(table), raw)
}

// appendLocal upserts doc into the collection snapshot, replacing any
// entry with the same id. pendingSync marks the copy as awaiting a
// remote write once connectivity returns.
func (a *Adapter) appendLocal(ctx context.Context, doc Document, pendingSync bool) error {
	if marker, ok := doc.(syncMarker); ok {
		marker.SetPendingSync(pendingSync)
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s document: %w", doc.TableName(), err)
	}

	raw, err := a.loadRaw(ctx, doc.TableName())
	if err != nil {
		return err
	}

	replaced := false
	for i, entry := range raw {
		var probe idProbe
		if json.Unmarshal(entry, &probe) != nil {
			continue
		}
		if probe.ID == doc.DocumentID() {
			raw[i] = encoded
			replaced = true
			break
		}
	}
	if !replaced {
		raw = append(raw, encoded)
	}

	return a.saveRaw(ctx, doc.TableName(), raw)
}

// patchLocal applies patch to the snapshot entry with id. Patch keys are
// column names, which match the documents' json field names.
func (a *Adapter) patchLocal(ctx context.Context, table string, id uuid.UUID, patch Patch, pendingSync bool) error {
	raw, err := a.loadRaw(ctx, table)
	if err != nil {
		return err
	}

	for i, entry := range raw {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		if fmt.Sprint(fields["id"]) != id.String() {
			continue
		}
		for k, v := range patch {
			fields[k] = v
		}
		if pendingSync {
			fields["pending_sync"] = true
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("re-encoding %s document: %w", table, err)
		}
		raw[i] = encoded
		return a.saveRaw(ctx, table, raw)
	}
	return errors.New(errors.CodeNotFound, fmt.Sprintf("%s document not in local snapshot", table))
}

func (a *Adapter) removeLocal(ctx context.Context, table string, id uuid.UUID) error {
	raw, err := a.loadRaw(ctx, table)
	if err != nil {
		return err
	}

	kept := raw[:0]
	for _, entry := range raw {
		var probe idProbe
		if json.Unmarshal(entry, &probe) == nil && probe.ID == id {
			continue
		}
		kept = append(kept, entry)
	}
	return a.saveRaw(ctx, table, kept)
}

func loadLocal[T Document](ctx context.Context, a *Adapter, table string) ([]T, error) {
	raw, err := a.loadRaw(ctx, table)
	if err != nil {
		return nil, err
	}

	docs := make([]T, 0, len(raw))
	for _, entry := range raw {
		var doc T
		if err := json.Unmarshal(entry, &doc); err != nil {
			a.log.Warn(ctx, fmt.Sprintf("skipping undecodable %s snapshot entry: %v", table, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// matches evaluates filters against the document's json encoding, so the
// same filter spelling works for both tiers.
func matches(doc Document, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	fields := documentFields(doc)
	for _, f := range filters {
		if fmt.Sprint(fields[f.Field]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func documentFields(doc Document) map[string]any {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	var fields map[string]any
	if json.Unmarshal(encoded, &fields) != nil {
		return nil
	}
	return fields
}

func sortDocs[T Document](docs []T, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		a := documentFields(docs[i])[field]
		b := documentFields(docs[j])[field]

		less := false
		af, aNum := a.(float64)
		bf, bNum := b.(float64)
		if aNum && bNum {
			less = af < bf
		} else {
			less = fmt.Sprint(a) < fmt.Sprint(b)
		}
		if desc {
			return !less
		}
		return less
	})
}
