package hotpath

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/logtag-forwarder/internal/config"
	"github.com/ibs-source/logtag-forwarder/internal/engine"
	"github.com/ibs-source/logtag-forwarder/internal/envelope"
	"github.com/ibs-source/logtag-forwarder/internal/log"
	"github.com/ibs-source/logtag-forwarder/internal/message"
	"github.com/ibs-source/logtag-forwarder/internal/metrics"
)

type fakeSource struct {
	mu       sync.Mutex
	fresh    []message.Entry[message.Payload]
	idle     []message.Entry[message.Payload]
	acked    []string
	ackErr   error
	readErr  error
	cleanups int
}

func (s *fakeSource) ReadBatch(ctx context.Context) (message.Batch[message.Payload], error) {
	s.mu.Lock()
	items, err := s.fresh, s.readErr
	s.fresh = nil
	s.mu.Unlock()

	if err != nil {
		return message.Batch[message.Payload]{}, err
	}
	if len(items) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
	}
	return message.Batch[message.Payload]{Items: items}, nil
}

func (s *fakeSource) ClaimIdle(context.Context) (message.Batch[message.Payload], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.idle
	s.idle = nil
	return message.Batch[message.Payload]{Items: items}, nil
}

func (s *fakeSource) AckAndDelete(_ context.Context, entry message.Entry[message.Payload]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ackErr != nil {
		return s.ackErr
	}
	s.acked = append(s.acked, entry.ID)
	return nil
}

func (s *fakeSource) CleanupDeadConsumers(context.Context, time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
	return 1, nil
}

func (s *fakeSource) ackedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

// fakeRunner fails bodies named "undecodable" with a decode error and
// "broken" with a plain error
type fakeRunner struct {
	mu   sync.Mutex
	seen []string
}

func (r *fakeRunner) Run(_ context.Context, data []byte) (*engine.Report, error) {
	r.mu.Lock()
	r.seen = append(r.seen, string(data))
	r.mu.Unlock()

	switch string(data) {
	case "undecodable":
		return &engine.Report{Result: engine.ResultDecodeError},
			&envelope.DecodeError{Stage: envelope.StageBase64, Err: errors.New("illegal base64 data")}
	case "broken":
		return nil, errors.New("broken")
	}
	return &engine.Report{Result: engine.ResultSuccess}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{
			ClaimIdle:           10 * time.Millisecond,
			CleanupInterval:     10 * time.Millisecond,
			ConsumerIdleTimeout: time.Minute,
		},
		Pipeline: config.PipelineConfig{ErrorBackoff: time.Millisecond},
	}
}

func entry(id, body string) message.Entry[message.Payload] {
	return message.Entry[message.Payload]{ID: id, Stream: "cwlogs-envelopes", Body: message.Payload(body)}
}

func TestNew(t *testing.T) {
	hp := New(&fakeSource{}, &fakeRunner{}, testConfig(), log.Discard(), nil)

	require.NotNil(t, hp)
	assert.Equal(t, 10*time.Millisecond, hp.claimInterval)
	assert.Equal(t, 10*time.Millisecond, hp.cleanupInterval)
	assert.Equal(t, time.Minute, hp.consumerIdleTimeout)
	assert.Equal(t, time.Millisecond, hp.errorBackoff)
}

func TestProcess_AcksSuccessAndPoison(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{}
	m := metrics.New()
	hp := New(source, runner, testConfig(), log.Discard(), m)

	hp.process(context.Background(), []message.Entry[message.Payload]{
		entry("1-0", "ok"),
		entry("2-0", "undecodable"),
		entry("3-0", "broken"),
		entry("4-0", ""),
	})

	assert.Equal(t, []string{"ok", "undecodable", "broken", ""}, runner.seen)
	assert.Equal(t, []string{"1-0", "2-0", "4-0"}, source.ackedIDs())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EnvelopesAcked))
}

func TestProcess_AckFailureNotCounted(t *testing.T) {
	source := &fakeSource{ackErr: errors.New("connection reset")}
	m := metrics.New()
	hp := New(source, &fakeRunner{}, testConfig(), log.Discard(), m)

	hp.process(context.Background(), []message.Entry[message.Payload]{entry("1-0", "ok")})

	assert.Empty(t, source.ackedIDs())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.EnvelopesAcked))
}

func TestProcess_StopsWhenCanceled(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{}
	hp := New(source, runner, testConfig(), log.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hp.process(ctx, []message.Entry[message.Payload]{entry("1-0", "ok")})

	assert.Empty(t, runner.seen)
	assert.Empty(t, source.ackedIDs())
}

func TestRun_FetchClaimAndCleanup(t *testing.T) {
	source := &fakeSource{
		fresh: []message.Entry[message.Payload]{entry("1-0", "ok"), entry("2-0", "ok")},
		idle:  []message.Entry[message.Payload]{entry("0-1", "ok")},
	}
	m := metrics.New()
	hp := New(source, &fakeRunner{}, testConfig(), log.Discard(), m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hp.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return len(source.ackedIDs()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.cleanups > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.ElementsMatch(t, []string{"1-0", "2-0", "0-1"}, source.ackedIDs())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnvelopesReclaimed))
}

func TestRun_ReadErrorsBackOff(t *testing.T) {
	source := &fakeSource{readErr: errors.New("i/o timeout")}
	hp := New(source, &fakeRunner{}, testConfig(), log.Discard(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := hp.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func encodedDelivery(t *testing.T) string {
	t.Helper()
	doc := `{"messageType":"DATA_MESSAGE","logGroup":"g","logStream":"s","logEvents":[]}`
	encoded, err := envelope.Encode([]byte(doc))
	require.NoError(t, err)
	return string(encoded)
}

func TestReplay(t *testing.T) {
	encoded := encodedDelivery(t)

	input := strings.Join([]string{
		`{"awslogs":{"data":"` + encoded + `"}}`,
		``,
		`"not an event"`,
		`{"awslogs":{"data":"undecodable"}}`,
		`{"awslogs":{"data":""}}`,
	}, "\n")

	runner := &fakeRunner{}
	stats, err := Replay(context.Background(), strings.NewReader(input), runner, log.Discard())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Events: 4, Failed: 2}, stats)
	assert.Equal(t, []string{encoded, "undecodable", ""}, runner.seen)
}

func TestReplay_PrettyPrintedEvent(t *testing.T) {
	encoded := encodedDelivery(t)
	input := "{\n  \"awslogs\": {\n    \"data\": \"" + encoded + "\"\n  }\n}\n"

	runner := &fakeRunner{}
	stats, err := Replay(context.Background(), strings.NewReader(input), runner, log.Discard())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Events: 1}, stats)
	assert.Equal(t, []string{encoded}, runner.seen)
}

func TestReplay_EveryEventFailed(t *testing.T) {
	input := "{\n  \"awslogs\": {\n    \"data\": \"undecodable\"\n  }\n}\n"

	stats, err := Replay(context.Background(), strings.NewReader(input), &fakeRunner{}, log.Discard())

	assert.ErrorIs(t, err, ErrNoEventProcessed)
	assert.Equal(t, ReplayStats{Events: 1, Failed: 1}, stats)
}

func TestReplay_Empty(t *testing.T) {
	stats, err := Replay(context.Background(), strings.NewReader("\n  \n"), &fakeRunner{}, log.Discard())
	require.NoError(t, err)
	assert.Zero(t, stats.Events)
}

func TestReplay_MalformedStream(t *testing.T) {
	input := `{"awslogs":{"data":"ok"}}` + "\n" + `not json`

	runner := &fakeRunner{}
	stats, err := Replay(context.Background(), strings.NewReader(input), runner, log.Discard())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
	assert.Equal(t, 1, stats.Events)
	assert.Equal(t, []string{"ok"}, runner.seen)
}

func TestReplay_StopsOnRunnerFailure(t *testing.T) {
	input := `{"awslogs":{"data":"ok"}}` + "\n" + `{"awslogs":{"data":"broken"}}` + "\n" + `{"awslogs":{"data":"ok"}}`

	runner := &fakeRunner{}
	stats, err := Replay(context.Background(), strings.NewReader(input), runner, log.Discard())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, []string{"ok", "broken"}, runner.seen)
}
