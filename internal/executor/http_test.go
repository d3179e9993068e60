package executor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/executor"
)

func runnerResponding(t *testing.T, response map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["source"])
		assert.NotEmpty(t, req["language"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPExecutorOK(t *testing.T) {
	srv := runnerResponding(t, map[string]interface{}{
		"status":     "OK",
		"stdout":     "3\n",
		"timeMillis": 12,
		"memoryKb":   4096,
	})
	exec := executor.NewHTTPExecutor(srv.URL, []string{"python"}, zerolog.Nop())

	res, err := exec.Execute(context.Background(), executor.Request{
		Source:    "print(1+2)",
		Language:  "python",
		TimeLimit: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "3\n", res.Stdout)
	assert.EqualValues(t, 12, res.TimeMillis)
	assert.EqualValues(t, 4096, res.MemoryKB)
}

func TestHTTPExecutorTimeoutStatus(t *testing.T) {
	srv := runnerResponding(t, map[string]interface{}{"status": "TIMEOUT"})
	exec := executor.NewHTTPExecutor(srv.URL, []string{"python"}, zerolog.Nop())

	_, err := exec.Execute(context.Background(), executor.Request{
		Source:    "while True: pass",
		Language:  "python",
		TimeLimit: time.Second,
	})
	assert.ErrorIs(t, err, executor.ErrTimeout)
}

func TestHTTPExecutorRuntimeErrorStatus(t *testing.T) {
	srv := runnerResponding(t, map[string]interface{}{
		"status":   "RUNTIME_ERROR",
		"stderr":   "ZeroDivisionError: division by zero",
		"exitCode": 1,
	})
	exec := executor.NewHTTPExecutor(srv.URL, []string{"python"}, zerolog.Nop())

	_, err := exec.Execute(context.Background(), executor.Request{
		Source:    "print(1/0)",
		Language:  "python",
		TimeLimit: time.Second,
	})

	var execErr *executor.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Stderr, "ZeroDivisionError")
	assert.Equal(t, 1, execErr.ExitCode)
}

func TestHTTPExecutorCompileErrorStatus(t *testing.T) {
	srv := runnerResponding(t, map[string]interface{}{
		"status":   "COMPILATION_ERROR",
		"stderr":   "main.cpp:3: error: expected ';'",
		"exitCode": 2,
	})
	exec := executor.NewHTTPExecutor(srv.URL, []string{"cpp"}, zerolog.Nop())

	_, err := exec.Execute(context.Background(), executor.Request{
		Source:    "int main( {",
		Language:  "cpp",
		TimeLimit: time.Second,
	})

	var execErr *executor.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Stderr, "expected ';'")
}

func TestHTTPExecutorUnsupportedLanguage(t *testing.T) {
	exec := executor.NewHTTPExecutor("http://localhost:0", []string{"python"}, zerolog.Nop())

	assert.True(t, exec.Supports("python"))
	assert.False(t, exec.Supports("cobol"))

	_, err := exec.Execute(context.Background(), executor.Request{
		Source: "x", Language: "cobol", TimeLimit: time.Second,
	})
	assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)
}

func TestHTTPExecutorNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	exec := executor.NewHTTPExecutor(srv.URL, []string{"python"}, zerolog.Nop())

	_, err := exec.Execute(context.Background(), executor.Request{
		Source: "x", Language: "python", TimeLimit: time.Second,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, executor.ErrTimeout))
}

// A runner that never answers within the limit plus grace surfaces as
// ErrTimeout rather than a transport error.
func TestHTTPExecutorDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now())
	defer cancel()

	srv := runnerResponding(t, map[string]interface{}{"status": "OK"})
	exec := executor.NewHTTPExecutor(srv.URL, []string{"python"}, zerolog.Nop())

	_, err := exec.Execute(ctx, executor.Request{
		Source: "x", Language: "python", TimeLimit: time.Second,
	})
	assert.ErrorIs(t, err, executor.ErrTimeout)
}
