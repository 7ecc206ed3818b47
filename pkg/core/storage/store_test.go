package storage

import (
	"bytes"
	"reflect"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dbSetup struct {
	name   string
	create func(testing.TB) Store
}

type dbTestFunction func(*testing.T, Store)

func testStoreGetNonExistent(t *testing.T, s Store) {
	key := []byte("sparse")

	_, err := s.Get(key)
	assert.Equal(t, ErrKeyNotFound, err)
}

func testStorePutAndGet(t *testing.T, s Store) {
	key := []byte("foo")
	value := []byte("bar")

	require.NoError(t, s.Put(key, value))

	result, err := s.Get(key)
	require.NoError(t, err)
	require.Equal(t, value, result)
}

func testStoreDelete(t *testing.T, s Store) {
	key := []byte("foo")
	value := []byte("bar")

	require.NoError(t, s.Put(key, value))
	require.NoError(t, s.Delete(key))

	_, err := s.Get(key)
	assert.Equal(t, ErrKeyNotFound, err)

	// Deleting missing keys is not an error.
	require.NoError(t, s.Delete([]byte("unknown")))
}

func testStorePutChangeSet(t *testing.T, s Store) {
	require.NoError(t, s.Put([]byte("old"), []byte("doomed")))

	puts := map[string][]byte{
		"one": []byte("1"),
		"two": []byte("2"),
		"old": nil,
	}
	require.NoError(t, s.PutChangeSet(puts))

	for k, v := range puts {
		res, err := s.Get([]byte(k))
		if v == nil {
			assert.Equal(t, ErrKeyNotFound, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, v, res)
	}
}

func testStoreSeek(t *testing.T, s Store) {
	kvs := []KeyValue{
		{[]byte("10"), []byte("bar")},
		{[]byte("11"), []byte("bara")},
		{[]byte("20"), []byte("barb")},
		{[]byte("21"), []byte("barc")},
		{[]byte("22"), []byte("bard")},
		{[]byte("30"), []byte("bare")},
		{[]byte("31"), []byte("barf")},
	}
	for _, v := range kvs {
		require.NoError(t, s.Put(v.Key, v.Value))
	}

	check := func(t *testing.T, prefix []byte, goodkvs []KeyValue, cont func(k, v []byte) bool) {
		actual := make([]KeyValue, 0, len(goodkvs))
		s.Seek(prefix, func(k, v []byte) bool {
			actual = append(actual, KeyValue{
				Key:   bytes.Clone(k),
				Value: bytes.Clone(v),
			})
			if cont == nil {
				return true
			}
			return cont(k, v)
		})
		assert.Equal(t, goodkvs, actual)
	}

	t.Run("good prefix, ascending order", func(t *testing.T) {
		check(t, []byte("2"), []KeyValue{kvs[2], kvs[3], kvs[4]}, nil)
	})
	t.Run("no matching items", func(t *testing.T) {
		check(t, []byte("0"), []KeyValue{}, nil)
	})
	t.Run("early stop", func(t *testing.T) {
		check(t, []byte("2"), []KeyValue{kvs[2], kvs[3]}, func(k, v []byte) bool {
			return string(k) < "21"
		})
	})
}

func TestAllDBs(t *testing.T) {
	var DBs = []dbSetup{
		{"BadgerDB", newBadgerDBForTesting},
		{"BoltDB", newBoltStoreForTesting},
		{"LevelDB", newLevelDBForTesting},
		{"MemCached", newMemCachedStoreForTesting},
		{"Memory", newMemoryStoreForTesting},
	}
	var tests = []dbTestFunction{testStoreGetNonExistent, testStorePutAndGet,
		testStoreDelete, testStorePutChangeSet, testStoreSeek}
	for _, db := range DBs {
		for _, test := range tests {
			s := db.create(t)
			twrapper := func(t *testing.T) {
				test(t, s)
			}
			fname := runtime.FuncForPC(reflect.ValueOf(test).Pointer()).Name()
			t.Run(db.name+"/"+fname, twrapper)
			require.NoError(t, s.Close())
		}
	}
}
