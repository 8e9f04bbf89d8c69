package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// NewPostgres dials and runs migrations against a live database, so only
// its DSN-parsing failure path is exercised here; the query-level
// behavior (Put/Take/Remove, and Take's UPDATE ... RETURNING single-use
// guarantee) requires a running Postgres instance and is not covered by
// this package's unit tests.
func TestNewPostgresRejectsMalformedDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), "not a valid dsn at all")
	assert.Error(t, err)
}
