package smoketest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("the pipeline passes", func(t *testing.T) {
		res, err := Run(context.Background(), Options{Steps: 6})

		require.NoError(t, err)
		require.Empty(t, res.Failures)
		require.True(t, res.Passed)
		require.Greater(t, res.QuadsRequested, 0)
		require.Greater(t, res.QuadsUploaded, 0)
		require.LessOrEqual(t, res.GpuQuads, 64)
	})

	t.Run("a canceled context aborts the test", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, Options{Steps: 6})
		require.Error(t, err)
	})
}

func TestHandle(t *testing.T) {
	handler := Handle(Options{Steps: 4})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var res Results
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.Passed)
}
