package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"

	"cohort-bank/db"
)

func TestPutGet(t *testing.T) {
	ldb, err := db.NewLevelDB(filepath.Join(t.TempDir(), "ldb"))
	require.NoError(t, err)
	defer ldb.Close()

	require.NoError(t, ldb.Put([]byte("a"), []byte("1")))
	v, err := ldb.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	_, err = ldb.Get([]byte("b"))
	assert.ErrorIs(t, err, leveldb.ErrNotFound)
}

func TestPrefixIterator(t *testing.T) {
	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	defer ldb.Close()

	for _, k := range []string{"cp:alice:1", "cp:alice:2", "cp:bob:1", "other"} {
		require.NoError(t, ldb.Put([]byte(k), []byte(k)))
	}

	iter := ldb.NewIterator([]byte("cp:alice:"))
	defer iter.Release()
	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"cp:alice:1", "cp:alice:2"}, keys)
}
