package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUp(t *testing.T) {
	t.Run("with down section", func(t *testing.T) {
		got := ExtractUp("-- +migrate Up\nCREATE TABLE a ();\n-- +migrate Down\nDROP TABLE a;\n")
		assert.Equal(t, "CREATE TABLE a ();", strings.TrimSpace(got))
	})

	t.Run("without markers", func(t *testing.T) {
		assert.Equal(t, "SELECT 1;", ExtractUp("SELECT 1;"))
	})

	t.Run("up only", func(t *testing.T) {
		got := ExtractUp("-- +migrate Up\nSELECT 1;")
		assert.Equal(t, "SELECT 1;", strings.TrimSpace(got))
	})
}

func TestMigrationFiles_Ordered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_events.sql", files[0])
	assert.IsIncreasing(t, files)
}
