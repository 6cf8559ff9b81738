package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_chain_events.up.sql":   {Data: []byte("CREATE TABLE chain_events ();")},
		"000002_chain_events.down.sql": {Data: []byte("DROP TABLE chain_events;")},
		"000001_commitments.up.sql":    {Data: []byte("CREATE TABLE commitments ();")},
		"000001_commitments.down.sql":  {Data: []byte("DROP TABLE commitments;")},
		"README.md":                    {Data: []byte("notes")},
		"archive/000000_old.up.sql":    {Data: []byte("SELECT 1;")},
	}

	got, err := upMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_commitments", "000002_chain_events"}, got)
}

func TestUpMigrations_Empty(t *testing.T) {
	got, err := upMigrations(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
