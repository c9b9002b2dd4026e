package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func stdio(id string) mcpmgr.ServerConfig {
	return mcpmgr.ServerConfig{ID: id, Name: id, Transport: mcpmgr.TransportStdio, Command: "server"}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, mcpmgr.ServerConfig{
		Name:      "remote",
		Transport: mcpmgr.TransportHTTP,
		URL:       "https://example.com/mcp",
		Headers:   map[string]string{"Authorization": "Bearer x"},
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Len(t, created.ID, 36)
	assert.False(t, created.IsActive)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "Bearer x", got.Headers["Authorization"])

	_, err = s.Create(ctx, got)
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), mcpmgr.ServerConfig{ID: "x", Transport: mcpmgr.TransportSSE})
	assert.ErrorIs(t, err, mcpmgr.ErrConfig)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "absent"), ErrNotFound)
	assert.ErrorIs(t, s.SetActive(context.Background(), "absent", true), ErrNotFound)
	_, err = s.Update(context.Background(), stdio("absent"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrderAndActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := s.Create(ctx, stdio(id))
		require.NoError(t, err)
	}
	require.NoError(t, s.SetActive(ctx, "alpha", true))

	list, err := s.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, ids)

	active, err := s.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alpha", active[0].ID)
}

func TestUpdateKeepsCreationAndActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created, err := s.Create(ctx, stdio("alpha"))
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, "alpha", true))

	next := stdio("alpha")
	next.Args = []string{"--verbose"}
	updated, err := s.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.IsActive)
	assert.Equal(t, []string{"--verbose"}, updated.Args)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, stdio("alpha"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "alpha"))
	_, err = s.Get(ctx, "alpha")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			src := newTestStore(t)
			ctx := context.Background()
			_, err := src.Create(ctx, stdio("alpha"))
			require.NoError(t, err)
			_, err = src.Create(ctx, mcpmgr.ServerConfig{
				ID: "remote", Transport: mcpmgr.TransportSSE, URL: "https://example.com/sse",
			})
			require.NoError(t, err)
			require.NoError(t, src.SetActive(ctx, "alpha", true))

			data, err := src.Export(ctx, format)
			require.NoError(t, err)

			dst := newTestStore(t)
			res, err := dst.Import(ctx, data, format)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Imported)
			assert.Zero(t, res.Skipped)

			got, err := dst.Get(ctx, "remote")
			require.NoError(t, err)
			assert.Equal(t, "https://example.com/sse", got.URL)
			alpha, err := dst.Get(ctx, "alpha")
			require.NoError(t, err)
			assert.False(t, alpha.IsActive)
		})
	}
}

func TestImportSkipsInvalidEntries(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Import(context.Background(), []byte(`
version: 1
servers:
  - id: good
    transport: stdio
    command: server
  - id: bad
    transport: http
  - transport: stdio
    command: other
`), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bad")

	_, err = s.Import(context.Background(), []byte("{not json"), FormatJSON)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("toml")
	assert.Error(t, err)
}
