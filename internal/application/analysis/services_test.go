package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

type fakeClient struct {
	calls  atomic.Int32
	result *domain.Result
	err    error
	// calls with Payload == blockOn wait for release
	blockOn string
	entered chan struct{}
	release chan struct{}
}

func (f *fakeClient) Analyze(ctx context.Context, req domain.Request) (*domain.Result, error) {
	f.calls.Add(1)
	if f.blockOn != "" && req.Payload == f.blockOn {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.result, f.err
}

// stepClock advances by one second on every Now call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, client domain.Client, maxInFlight int) *Service {
	t.Helper()
	return NewService(client, &stepClock{now: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}, zaptest.NewLogger(t), maxInFlight)
}

func TestSubmitSucceeds(t *testing.T) {
	client := &fakeClient{result: &domain.Result{Rows: []domain.Row{{Sentence: "Rates will rise.", Agent: "central_banks", Sentiment: "negative"}}}}
	svc := newTestService(t, client, 0)

	out, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s1", Mode: "Text", Payload: " Rates will rise. "})
	require.NoError(t, err)

	assert.EqualValues(t, 1, client.calls.Load())
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, domain.Request{Mode: domain.ModeText, Payload: "Rates will rise."}, out.Request)
	assert.Len(t, out.Result.Rows, 1)
	assert.False(t, out.NotSignificant())
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, time.Second, out.Duration)
	assert.Equal(t, StateIdle, svc.State("s1"))
}

func TestSubmitNotSignificant(t *testing.T) {
	svc := newTestService(t, &fakeClient{result: &domain.Result{Rows: []domain.Row{}}}, 0)

	out, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s1", Mode: "url", Payload: "https://example.com/speech"})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.True(t, out.NotSignificant())
}

func TestSubmitRejectsBeforeDispatch(t *testing.T) {
	cases := []struct {
		mode, payload string
		want          error
	}{
		{"text", "", domain.ErrEmptyInput},
		{"text", "   \n\t", domain.ErrEmptyInput},
		{"url", " ", domain.ErrEmptyInput},
		{"url", "file:///etc/passwd", domain.ErrInvalidInput},
		{"image", "x", domain.ErrInvalidMode},
	}
	for _, tc := range cases {
		client := &fakeClient{result: &domain.Result{}}
		svc := newTestService(t, client, 0)

		out, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s", Mode: tc.mode, Payload: tc.payload})
		require.ErrorIs(t, err, tc.want, "%s %q", tc.mode, tc.payload)
		assert.Equal(t, StateFailed, out.State)
		assert.ErrorIs(t, out.Err, tc.want)
		assert.Zero(t, client.calls.Load(), "no network call expected for %s %q", tc.mode, tc.payload)
	}
}

func TestSubmitPropagatesAdapterErrors(t *testing.T) {
	for _, adapterErr := range []error{
		&domain.ServiceError{Status: 500},
		&domain.UnreachableError{Message: "connection refused"},
		domain.Malformed("length mismatch", nil),
	} {
		client := &fakeClient{err: adapterErr}
		svc := newTestService(t, client, 0)

		out, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s", Mode: "text", Payload: "x"})
		require.Equal(t, adapterErr, err)
		assert.Equal(t, StateFailed, out.State)
		assert.Nil(t, out.Result)
		assert.EqualValues(t, 1, client.calls.Load())
	}
}

func TestSubmitSerializesPerSession(t *testing.T) {
	client := &fakeClient{
		result:  &domain.Result{},
		blockOn: "first",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(t, client, 4)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s1", Mode: "text", Payload: "first"})
		done <- err
	}()
	<-client.entered
	assert.Equal(t, StateSubmitted, svc.State("s1"))

	_, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "s1", Mode: "text", Payload: "second"})
	require.ErrorIs(t, err, domain.ErrSubmissionInFlight)

	// a different session is not blocked by s1
	_, err = svc.Submit(context.Background(), SubmitCommand{SessionID: "s2", Mode: "text", Payload: "other"})
	require.NoError(t, err)

	client.release <- struct{}{}
	require.NoError(t, <-done)
	assert.EqualValues(t, 2, client.calls.Load())
	assert.Equal(t, StateIdle, svc.State("s1"))
}

func TestSubmitBusyWhenSlotsExhausted(t *testing.T) {
	client := &fakeClient{
		result:  &domain.Result{},
		blockOn: "x",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newTestService(t, client, 1)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "a", Mode: "text", Payload: "x"})
		done <- err
	}()
	<-client.entered

	_, err := svc.Submit(context.Background(), SubmitCommand{SessionID: "b", Mode: "text", Payload: "y"})
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, StateIdle, svc.State("b"))

	client.release <- struct{}{}
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, client.calls.Load())
}
