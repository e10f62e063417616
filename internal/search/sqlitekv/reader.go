package sqlitekv

import (
	"bytes"
	"database/sql"
	"fmt"

	store "github.com/blevesearch/upsidedown_store_api"
)

// pageSize is the number of rows an iterator loads per query.
const pageSize = 256

// Reader is a read-only snapshot backed by one transaction.
type Reader struct {
	tx *sql.Tx
}

// Get returns the value for key, or nil if it is missing.
func (r *Reader) Get(key []byte) ([]byte, error) {
	var v []byte
	err := r.tx.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: get: %w", err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (r *Reader) MultiGet(keys [][]byte) ([][]byte, error) {
	return store.MultiGet(r, keys)
}

// PrefixIterator visits every key starting with prefix.
func (r *Reader) PrefixIterator(prefix []byte) store.KVIterator {
	it := &Iterator{
		tx:     r.tx,
		start:  append([]byte(nil), prefix...),
		end:    prefixEnd(prefix),
		prefix: append([]byte(nil), prefix...),
	}
	it.Seek(it.start)
	return it
}

// RangeIterator visits keys in [start, end). A nil end is unbounded.
func (r *Reader) RangeIterator(start, end []byte) store.KVIterator {
	it := &Iterator{
		tx:    r.tx,
		start: append([]byte(nil), start...),
	}
	if end != nil {
		it.end = append([]byte(nil), end...)
	}
	it.Seek(it.start)
	return it
}

// Close ends the snapshot.
func (r *Reader) Close() error {
	if err := r.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("sqlitekv: end read: %w", err)
	}
	return nil
}

// prefixEnd returns the smallest key greater than every key with the
// prefix, or nil when there is none.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type row struct {
	k, v []byte
}

// Iterator walks keys in order, one page of rows at a time.
type Iterator struct {
	tx     *sql.Tx
	start  []byte
	end    []byte
	prefix []byte

	page []row
	pos  int
	more bool
	err  error
}

// Seek moves to the first key at or after key, never before the
// iterator's start.
func (it *Iterator) Seek(key []byte) {
	if bytes.Compare(key, it.start) < 0 {
		key = it.start
	}
	it.load(key, true)
}

// Next advances to the following key.
func (it *Iterator) Next() {
	if !it.Valid() {
		return
	}
	it.pos++
	if it.pos >= len(it.page) && it.more {
		last := it.page[len(it.page)-1].k
		it.load(last, false)
	}
}

func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.page[it.pos].k
}

func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.page[it.pos].v
}

func (it *Iterator) Valid() bool {
	if it.err != nil || it.pos >= len(it.page) {
		return false
	}
	return it.prefix == nil || bytes.HasPrefix(it.page[it.pos].k, it.prefix)
}

func (it *Iterator) Current() ([]byte, []byte, bool) {
	if !it.Valid() {
		return nil, nil, false
	}
	return it.page[it.pos].k, it.page[it.pos].v, true
}

// Close returns the first error met while loading rows.
func (it *Iterator) Close() error {
	it.page = nil
	return it.err
}

// load replaces the page with the rows following from, inclusive or not.
func (it *Iterator) load(from []byte, inclusive bool) {
	it.page = it.page[:0]
	it.pos = 0
	it.more = false
	if it.err != nil {
		return
	}

	op := ">"
	if inclusive {
		op = ">="
	}
	query := `SELECT k, v FROM kv WHERE k ` + op + ` ?`
	args := []interface{}{from}
	if it.end != nil {
		query += ` AND k < ?`
		args = append(args, it.end)
	}
	query += ` ORDER BY k LIMIT ?`
	args = append(args, pageSize)

	rows, err := it.tx.Query(query, args...)
	if err != nil {
		it.err = fmt.Errorf("sqlitekv: iterate: %w", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var r row
		if err := rows.Scan(&r.k, &r.v); err != nil {
			it.err = fmt.Errorf("sqlitekv: scan row: %w", err)
			it.page = it.page[:0]
			return
		}
		if r.v == nil {
			r.v = []byte{}
		}
		it.page = append(it.page, r)
	}
	if err := rows.Err(); err != nil {
		it.err = fmt.Errorf("sqlitekv: iterate: %w", err)
		it.page = it.page[:0]
		return
	}
	it.more = len(it.page) == pageSize
}
