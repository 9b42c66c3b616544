package notification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agrisense/farm-advisor/internal/advisor"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/features"
	"github.com/agrisense/farm-advisor/internal/leafscan"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	name     string
	supports func(*Event) bool
	failures []error // returned in order before succeeding
	block    chan struct{}

	mu     sync.Mutex
	sent   []*Event
	calls  int
	closed bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Supports(e *Event) bool {
	if f.supports == nil {
		return true
	}
	return f.supports(e)
}

func (f *fakeProvider) Send(ctx context.Context, e *Event) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeProvider) snapshot() (sent []*Event, calls int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Event(nil), f.sent...), f.calls, f.closed
}

type countingRecorder struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int
	dropped   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{delivered: map[string]int{}, failed: map[string]int{}}
}

func (r *countingRecorder) RecordDelivery(provider string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed[provider]++
		return
	}
	r.delivered[provider]++
}

func (r *countingRecorder) RecordDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func unhealthyDiagnosis(t *testing.T) leafscan.Diagnosis {
	t.Helper()
	d, err := leafscan.Interpret([]float32{0.1, 0.2, 0.7})
	require.NoError(t, err)
	return d
}

func healthyDiagnosis(t *testing.T) leafscan.Diagnosis {
	t.Helper()
	d, err := leafscan.Interpret([]float32{0.1, 0.8, 0.1})
	require.NoError(t, err)
	return d
}

func TestNewLeafDiagnosisEvent_Severity(t *testing.T) {
	t.Parallel()

	warn := NewLeafDiagnosisEvent("farmer", unhealthyDiagnosis(t))
	assert.Equal(t, KindLeafDiagnosis, warn.Kind)
	assert.Equal(t, SeverityWarning, warn.Severity)
	assert.Equal(t, "Banana leaf: Banana Xanthomonas Wilt", warn.Title)
	assert.Contains(t, warn.Message, "70.0% confidence")
	assert.NotEmpty(t, warn.ID)

	ok := NewLeafDiagnosisEvent("farmer", healthyDiagnosis(t))
	assert.Equal(t, SeverityInfo, ok.Severity)
}

func TestNewFieldAdviceEvent(t *testing.T) {
	t.Parallel()

	reading := features.FieldReading{Moisture: 30, Rainfall: 100, Sandy: 1}
	p := advisor.Prediction{Irrigation: 1, PesticideDose: 12.5, HealthScore: 0.8, Yield: 300}

	e := NewFieldAdviceEvent("farmer", reading, p)
	assert.Equal(t, KindFieldAdvice, e.Kind)
	assert.Equal(t, SeverityInfo, e.Severity)
	assert.Contains(t, e.Message, "Irrigation: Yes")
	assert.Contains(t, e.Message, "12.50 ml/hectare")
	assert.Contains(t, e.Message, "300.00 kg/hectare")

	data, ok := e.Data.(FieldAdviceData)
	require.True(t, ok)
	assert.Equal(t, p, data.Prediction)
}

func TestDispatcher_DeliversToSupportingProviders(t *testing.T) {
	t.Parallel()

	all := &fakeProvider{name: "all"}
	warnOnly := &fakeProvider{name: "warn", supports: func(e *Event) bool { return e.Severity == SeverityWarning }}
	rec := newCountingRecorder()

	d := NewDispatcher(8, []Provider{all, warnOnly}, WithRecorder(rec))
	assert.Equal(t, []string{"all", "warn"}, d.Providers())

	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))
	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", unhealthyDiagnosis(t))))
	require.NoError(t, d.Close(context.Background()))

	sent, _, closed := all.snapshot()
	assert.Len(t, sent, 2)
	assert.True(t, closed)

	sent, _, _ = warnOnly.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, SeverityWarning, sent[0].Severity)

	assert.Equal(t, 2, rec.delivered["all"])
	assert.Equal(t, 1, rec.delivered["warn"])
}

func TestDispatcher_RetriesNetworkErrorsOnly(t *testing.T) {
	t.Parallel()

	netErr := errors.Newf("connection refused").Category(errors.CategoryNetwork).Build()
	flaky := &fakeProvider{name: "flaky", failures: []error{netErr, netErr}}
	broken := &fakeProvider{name: "broken", failures: []error{
		errors.Newf("bad payload").Category(errors.CategoryNotification).Build(),
	}}
	rec := newCountingRecorder()

	d := NewDispatcher(4, []Provider{flaky, broken}, WithRecorder(rec), WithRetry(2, time.Millisecond))
	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", unhealthyDiagnosis(t))))
	require.NoError(t, d.Close(context.Background()))

	_, flakyCalls, _ := flaky.snapshot()
	assert.Equal(t, 3, flakyCalls)
	_, brokenCalls, _ := broken.snapshot()
	assert.Equal(t, 1, brokenCalls)

	assert.Equal(t, 1, rec.delivered["flaky"])
	assert.Equal(t, 1, rec.failed["broken"])
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := &fakeProvider{name: "slow", block: release}
	rec := newCountingRecorder()

	d := NewDispatcher(1, []Provider{slow}, WithRecorder(rec))

	// The worker takes the first event and blocks; the second fills the queue.
	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))
	assert.False(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))

	close(release)
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, rec.dropped)
	sent, _, _ := slow.snapshot()
	assert.Len(t, sent, 2)
}

func TestDispatcher_CloseHonorsContext(t *testing.T) {
	t.Parallel()

	stuck := &fakeProvider{name: "stuck", block: make(chan struct{})}
	d := NewDispatcher(4, []Provider{stuck})
	require.True(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.False(t, d.Publish(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_NilAndEmpty(t *testing.T) {
	t.Parallel()

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Publish(&Event{}))
	assert.NoError(t, nilDispatcher.Close(context.Background()))
	assert.Nil(t, nilDispatcher.Providers())

	empty := NewDispatcher(0, nil)
	assert.False(t, empty.Publish(&Event{}))
	assert.NoError(t, empty.Close(context.Background()))
}

func TestShoutrrrProvider_Supports(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrProvider(nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	p, err := NewShoutrrrProvider([]string{"logger://"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "shoutrrr", p.Name())

	assert.True(t, p.Supports(NewLeafDiagnosisEvent("u", unhealthyDiagnosis(t))))
	assert.False(t, p.Supports(NewLeafDiagnosisEvent("u", healthyDiagnosis(t))))
	assert.False(t, p.Supports(NewFieldAdviceEvent("u", features.FieldReading{}, advisor.Prediction{})))
}

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMQTTClient struct {
	connected bool
	token     *fakeToken

	mu           sync.Mutex
	topics       []string
	payloads     [][]byte
	retained     []bool
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload.([]byte))
	c.retained = append(c.retained, retained)
	if c.token == nil {
		return &fakeToken{}
	}
	return c.token
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func TestMQTTProvider_PublishesJSON(t *testing.T) {
	t.Parallel()

	client := &fakeMQTTClient{connected: true}
	p := newMQTTProvider(client, "farm-advisor/advisories", true)
	assert.True(t, p.Supports(&Event{Kind: KindFieldAdvice}))

	e := NewLeafDiagnosisEvent("farmer", unhealthyDiagnosis(t))
	require.NoError(t, p.Send(context.Background(), e))

	require.Len(t, client.topics, 1)
	assert.Equal(t, "farm-advisor/advisories/leaf_diagnosis", client.topics[0])
	assert.True(t, client.retained[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.payloads[0], &decoded))
	assert.Equal(t, e.ID, decoded["id"])
	assert.Equal(t, "warning", decoded["severity"])
	assert.Equal(t, "farmer", decoded["username"])

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTProvider_Errors(t *testing.T) {
	t.Parallel()

	e := NewLeafDiagnosisEvent("u", healthyDiagnosis(t))

	offline := newMQTTProvider(&fakeMQTTClient{}, "t", false)
	err := offline.Send(context.Background(), e)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	slow := newMQTTProvider(&fakeMQTTClient{connected: true, token: &fakeToken{timeout: true}}, "t", false)
	err = slow.Send(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	rejected := newMQTTProvider(&fakeMQTTClient{connected: true, token: &fakeToken{err: assert.AnError}}, "t", false)
	err = rejected.Send(context.Background(), e)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
}
