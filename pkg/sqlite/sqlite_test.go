package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pragma(t *testing.T, conn *sql.Conn, name string) string {
	t.Helper()
	var v string
	require.NoError(t, conn.QueryRowContext(context.Background(), "PRAGMA "+name).Scan(&v))
	return v
}

func TestOpenAppliesPragmasToEveryConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path, WithBusyTimeout(1500*time.Millisecond))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first, err := db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		assert.Equal(t, "1500", pragma(t, conn, "busy_timeout"))
		assert.Equal(t, "1", pragma(t, conn, "foreign_keys"))
		assert.Equal(t, "wal", strings.ToLower(pragma(t, conn, "journal_mode")))
	}
}

func TestOpenDefaults(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	defer db.Close()

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "5000", pragma(t, conn, "busy_timeout"))
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (v) VALUES (1), (2)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 2, n, "all queries share the single in-memory connection")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := dsn("/tmp/x.db", 2*time.Second)
	assert.True(t, strings.HasPrefix(d, "/tmp/x.db?"))
	assert.Contains(t, d, "_busy_timeout=2000")
	assert.Contains(t, d, "_txlock=immediate")
	assert.NotContains(t, dsn(MemoryPath, time.Second), "_journal_mode")
}
