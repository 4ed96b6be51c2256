package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutboxKind(t *testing.T) {
	t.Parallel()

	for _, kind := range []OutboxKind{OutboxUpsert, OutboxSupersededBy, OutboxRevokeCapsule} {
		parsed, err := ParseOutboxKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseOutboxKind("DELETED")
	assert.Error(t, err)

	_, err = ParseOutboxKind("upsert")
	assert.Error(t, err, "wire strings are case sensitive")
}
