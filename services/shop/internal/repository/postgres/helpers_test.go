package postgres

import (
	"regexp"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/gamehub/shop/pkg/database"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

// q turns a SQL constant into a literal pgxmock pattern.
func q(sql string) string {
	return regexp.QuoteMeta(sql)
}
