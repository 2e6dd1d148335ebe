package steps

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepKind(t *testing.T, err error) domain.StepErrorKind {
	t.Helper()
	var se *domain.StepError
	require.ErrorAs(t, err, &se)
	return se.Kind
}

func TestTrigger(t *testing.T) {
	out, err := trigger(context.Background(), map[string]interface{}{"ignored": true}, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Data)
	assert.Equal(t, []string{"workflow triggered"}, out.Logs)
}

func TestLogMessage(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]interface{}
		want    []string
		wantErr bool
	}{
		{name: "message", params: map[string]interface{}{"message": "hi"}, want: []string{"hi"}},
		{name: "default", params: map[string]interface{}{}, want: []string{"No message"}},
		{name: "empty string kept", params: map[string]interface{}{"message": ""}, want: []string{""}},
		{name: "not a string", params: map[string]interface{}{"message": 42.0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := logMessage(context.Background(), tt.params, nil)
			if tt.wantErr {
				assert.Equal(t, domain.StepErrInvalidParams, stepKind(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Logs)
		})
	}
}

func TestDelay(t *testing.T) {
	start := time.Now()
	out, err := delay(context.Background(), map[string]interface{}{"ms": 20.0}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []string{"waited 20ms"}, out.Logs)

	out, err = delay(context.Background(), map[string]interface{}{"ms": 0.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"waited 0ms"}, out.Logs)
}

func TestDelayInvalidParams(t *testing.T) {
	for _, ms := range []interface{}{-5.0, 1.5, "100", true, 1e16, 1e20, int64(maxDelayMs) + 1} {
		_, err := delay(context.Background(), map[string]interface{}{"ms": ms}, nil)
		assert.Equal(t, domain.StepErrInvalidParams, stepKind(t, err), "ms=%v", ms)
	}
}

func TestDelayAcceptsLongestDuration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := delay(ctx, map[string]interface{}{"ms": int64(maxDelayMs)}, nil)
	assert.Equal(t, domain.StepErrCancelled, stepKind(t, err), "the bound itself is a valid delay")
}

func TestDelayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := delay(ctx, map[string]interface{}{}, nil)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.StepErrCancelled, stepKind(t, err))
	assert.Contains(t, err.Error(), "interrupted")
}

func TestDelayTimedOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := delay(ctx, map[string]interface{}{"ms": 5000.0}, nil)
	assert.Equal(t, domain.StepErrTimedOut, stepKind(t, err))
}

func TestEndListsUpstreamSorted(t *testing.T) {
	out, err := end(context.Background(), nil, Upstream{"b": {}, "a": {"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, out.Data["upstream"])
	assert.Equal(t, []string{"workflow finished"}, out.Logs)
}

func TestParams(t *testing.T) {
	n, err := intParam(map[string]interface{}{"n": 3}, "n", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = intParam(map[string]interface{}{}, "n", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	f, err := floatParam(map[string]interface{}{"f": 2}, "f", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	_, err = boolParam(map[string]interface{}{"b": "yes"}, "b", false)
	assert.Equal(t, domain.StepErrInvalidParams, stepKind(t, err))

	_, err = requiredString(map[string]interface{}{}, "path")
	assert.Equal(t, domain.StepErrInvalidParams, stepKind(t, err))
}

func TestUpstreamText(t *testing.T) {
	text := upstreamText(Upstream{
		"b": {"text": "second"},
		"a": {"text": "first"},
		"c": {"other": "x"},
		"d": {"text": ""},
	})
	assert.Equal(t, "first\nsecond", text)
}
