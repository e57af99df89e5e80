package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		namespace  string
		database   string
		collection string
		id         string
		path       string
	}{
		{
			name:       "tube",
			raw:        "ns://db/T",
			namespace:  "ns",
			database:   "db",
			collection: "T",
			path:       "ns://db/T",
		},
		{
			name:      "prefix only",
			raw:       "ns://db",
			namespace: "ns",
			database:  "db",
			path:      "ns://db",
		},
		{
			name:       "thing notation",
			raw:        "ns://db/stations:42",
			namespace:  "ns",
			database:   "db",
			collection: "stations",
			id:         "42",
			path:       "ns://db/stations",
		},
		{
			name:       "slash id",
			raw:        "ns://db/stations/abc",
			namespace:  "ns",
			database:   "db",
			collection: "stations",
			id:         "abc",
			path:       "ns://db/stations",
		},
		{
			name:       "id in query",
			raw:        "ns://db/stations?id=7&kind=x",
			namespace:  "ns",
			database:   "db",
			collection: "stations",
			id:         "7",
			path:       "ns://db/stations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURI(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.namespace, u.Namespace)
			assert.Equal(t, tt.database, u.Database)
			assert.Equal(t, tt.collection, u.Collection)
			assert.Equal(t, tt.id, u.ID)
			assert.Equal(t, tt.path, u.Path())
		})
	}
}

func TestParseURI_Invalid(t *testing.T) {
	for _, raw := range []string{"", "just-a-name", "/db/T", "ns:///T"} {
		_, err := ParseURI(raw)
		assert.ErrorIs(t, err, ErrInvalidURI, raw)
	}
}

func TestTableURI(t *testing.T) {
	uri, err := TableURI("ns://db/whatever?x=1", TableTubeSync)
	require.NoError(t, err)
	assert.Equal(t, "ns://db/TubeSync", uri)

	_, err = TableURI("nope", TableTubeSync)
	assert.ErrorIs(t, err, ErrInvalidURI)
}
