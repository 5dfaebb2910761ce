package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithoutDatabaseURLIsUnconfigured(t *testing.T) {
	store, err := New(context.Background(), Config{})
	require.NoError(t, err, "a missing URL is a state, not an error")
	require.False(t, store.Configured())
}

func TestUnconfiguredOperationsFailDescriptively(t *testing.T) {
	store, err := New(context.Background(), Config{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.ListFiles(ctx, "demo")
	require.Error(t, err)

	var ncErr *NotConfiguredError
	require.ErrorAs(t, err, &ncErr)
	require.Contains(t, err.Error(), "backend disabled")
	require.Contains(t, err.Error(), "backend.database_url")

	_, err = store.GetFile(ctx, "demo", "main.go")
	require.ErrorAs(t, err, &ncErr)

	_, err = store.PutFile(ctx, "demo", "main.go", "package main")
	require.ErrorAs(t, err, &ncErr)

	require.ErrorAs(t, store.DeleteFile(ctx, "demo", "main.go"), &ncErr)
	require.ErrorAs(t, store.Ping(ctx), &ncErr)

	// Close on the stand-in is harmless.
	store.Close()
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(context.Background(), Config{DatabaseURL: "://not-a-url"})
	require.ErrorContains(t, err, "failed to create backend pool")
}

func TestFileNotFoundErrorMessage(t *testing.T) {
	err := &FileNotFoundError{Project: "demo", Path: "a/b.go"}
	require.Equal(t, `file not found: project="demo" path="a/b.go"`, err.Error())
}
