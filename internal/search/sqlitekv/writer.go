package sqlitekv

import (
	"database/sql"
	"fmt"

	store "github.com/blevesearch/upsidedown_store_api"
)

const upsert = `INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`

// Writer applies batches, each in one transaction.
type Writer struct {
	s *Store
}

func (w *Writer) NewBatch() store.KVBatch {
	return store.NewEmulatedBatch(w.s.mo)
}

func (w *Writer) NewBatchEx(options store.KVBatchOptions) ([]byte, store.KVBatch, error) {
	return make([]byte, options.TotalBytes), w.NewBatch(), nil
}

// ExecuteBatch applies the batch's merges, then its sets and deletes in
// the order they were added.
func (w *Writer) ExecuteBatch(batch store.KVBatch) error {
	emulated, ok := batch.(*store.EmulatedBatch)
	if !ok {
		return fmt.Errorf("sqlitekv: wrong type of batch %T", batch)
	}

	tx, err := w.s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitekv: begin write: %w", err)
	}
	if err := w.apply(tx, emulated); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitekv: commit: %w", err)
	}
	return nil
}

func (w *Writer) apply(tx *sql.Tx, batch *store.EmulatedBatch) error {
	upsertStmt, err := tx.Prepare(upsert)
	if err != nil {
		return fmt.Errorf("sqlitekv: prepare upsert: %w", err)
	}
	defer upsertStmt.Close()

	for k, operands := range batch.Merger.Merges {
		key := []byte(k)
		var existing []byte
		err := tx.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("sqlitekv: read merge base: %w", err)
		}
		merged, ok := w.s.mo.FullMerge(key, existing, operands)
		if !ok {
			return fmt.Errorf("sqlitekv: merge operator %s failed", w.s.mo.Name())
		}
		if _, err := upsertStmt.Exec(key, merged); err != nil {
			return fmt.Errorf("sqlitekv: write merge: %w", err)
		}
	}

	deleteStmt, err := tx.Prepare(`DELETE FROM kv WHERE k = ?`)
	if err != nil {
		return fmt.Errorf("sqlitekv: prepare delete: %w", err)
	}
	defer deleteStmt.Close()

	for _, op := range batch.Ops {
		if op.V == nil {
			_, err = deleteStmt.Exec(op.K)
		} else {
			_, err = upsertStmt.Exec(op.K, op.V)
		}
		if err != nil {
			return fmt.Errorf("sqlitekv: write: %w", err)
		}
	}
	return nil
}

func (w *Writer) Close() error {
	w.s = nil
	return nil
}
