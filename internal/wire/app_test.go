package wire

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/ingestd/internal/config"
	"github.com/mithrel/ingestd/internal/ingest"
)

func loadTestViper(t *testing.T, journalOn bool) *viper.Viper {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(tmp, "run"))
	v := viper.New()
	v.Set("data_dir", filepath.Join(tmp, "data"))
	v.Set("journal.enabled", journalOn)
	v.Set("log.file", filepath.Join(tmp, "ingestd.log"))
	require.NoError(t, config.Load(context.Background(), v))
	return v
}

func TestBuildAppWithJournal(t *testing.T) {
	v := loadTestViper(t, true)
	app, err := BuildApp(context.Background(), v)
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Journal)
	fan, ok := app.Observer().(ingest.Fanout)
	require.True(t, ok)
	assert.Len(t, fan, 3)

	m, err := ingest.Decode([]byte(`{"a":1}`))
	require.NoError(t, err)
	app.Observer().Report(ingest.Outcome{ConnID: "c", Kind: ingest.KindDecoded, Message: m, Size: 7})

	counts, err := app.Journal.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[ingest.KindDecoded])
}

func TestBuildAppWithoutJournal(t *testing.T) {
	v := loadTestViper(t, false)
	app, err := BuildApp(context.Background(), v)
	require.NoError(t, err)
	assert.Nil(t, app.Journal)
	assert.Len(t, app.Observer().(ingest.Fanout), 2)
	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}

func TestBuildAppRejectsInvalidConfig(t *testing.T) {
	v := loadTestViper(t, false)
	v.Set("log.level", "loud")
	_, err := BuildApp(context.Background(), v)
	assert.Error(t, err)
}
