package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilModified_Write(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")

	ctx, cancel, err := UntilModified(context.Background(), path)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ctx.Err())
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	select {
	case <-ctx.Done():
		assert.Contains(t, context.Cause(ctx).Error(), "is updated")
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled after the config was written")
	}
}

func TestUntilModified_Cancel(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")

	ctx, cancel, err := UntilModified(context.Background(), path)
	require.NoError(t, err)

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

func TestUntilModified_MissingFile(t *testing.T) {
	_, _, err := UntilModified(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
