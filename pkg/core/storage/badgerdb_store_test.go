package storage

import (
	"testing"

	"github.com/maexx393/mintgate/pkg/core/storage/dbconfig"
	"github.com/stretchr/testify/require"
)

func newBadgerDBForTesting(t testing.TB) Store {
	bdbDir := t.TempDir()
	dbConfig := dbconfig.DBConfiguration{
		Type: dbconfig.BadgerDB,
		BadgerDBOptions: dbconfig.BadgerDBOptions{
			Dir: bdbDir,
		},
	}
	newBadgerStore, err := NewBadgerDBStore(dbConfig.BadgerDBOptions)
	require.Nil(t, err, "NewBadgerDBStore error")
	return newBadgerStore
}
