package kv

import (
	"context"

	"github.com/rotisserie/eris"
	dbm "github.com/tendermint/tm-db"
)

// TMDB is a Backend over a tendermint key-value database.
type TMDB struct {
	db dbm.DB
}

var _ Backend = &TMDB{}

func NewTMDB(db dbm.DB) *TMDB {
	return &TMDB{db: db}
}

// NewMemBackend returns a Backend that keeps everything in memory.
func NewMemBackend() *TMDB {
	return NewTMDB(dbm.NewMemDB())
}

// NewLevelDBBackend opens (or creates) a goleveldb database named name under dir.
func NewLevelDBBackend(name, dir string) (*TMDB, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open leveldb %q in %q", name, dir)
	}
	return NewTMDB(db), nil
}

func (t *TMDB) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := t.db.Get([]byte(key))
	if err != nil {
		return nil, false, eris.Wrap(err, "")
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (t *TMDB) Apply(_ context.Context, ops []Op) (err error) {
	batch := t.db.NewBatch()
	defer func() {
		if closeErr := batch.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "")
		}
	}()
	for _, op := range ops {
		if op.IsDelete() {
			err = batch.Delete([]byte(op.Key))
		} else {
			err = batch.Set([]byte(op.Key), op.Value)
		}
		if err != nil {
			return eris.Wrapf(err, "failed to stage key %q", op.Key)
		}
	}
	if err = batch.WriteSync(); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

func (t *TMDB) Close() error {
	return eris.Wrap(t.db.Close(), "")
}
