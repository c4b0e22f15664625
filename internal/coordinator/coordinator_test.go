package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/smarthome-bridge/internal/device"
	"github.com/nerrad567/smarthome-bridge/internal/hub"
	"github.com/nerrad567/smarthome-bridge/internal/supervisor"
)

// =============================================================================
// Test doubles
// =============================================================================

const twoDevices = `[
	{"id":1,"name":"Kitchen","device_type":"switch","enabled":true},
	{"id":2,"name":"Hall","device_type":"rgb_led","enabled":true},
	{"id":3,"name":"Garage","device_type":"switch","enabled":false}
]`

// fakeClient is a HubClient with a scriptable snapshot response.
type fakeClient struct {
	mu       sync.Mutex
	body     string
	err      error
	gate     chan struct{} // when non-nil, FetchDevices blocks until it is closed
	entered  chan struct{}
	fetches  atomic.Int32
	commands []sentCommand
	cmdErr   error
}

type sentCommand struct {
	ID      string
	Partial map[string]any
}

func newFakeClient(body string) *fakeClient {
	return &fakeClient{body: body, entered: make(chan struct{}, 16)}
}

func (f *fakeClient) respond(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

func (f *fakeClient) block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeClient) FetchDevices(_ context.Context) ([]byte, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	gate, body, err := f.gate, f.body, f.err
	f.mu.Unlock()

	f.entered <- struct{}{}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (f *fakeClient) SendCommand(_ context.Context, id string, partial map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, sentCommand{ID: id, Partial: partial})
	return f.cmdErr
}

// fakeStream lets a test push frames through the coordinator's frame handler.
type fakeStream struct {
	onFrame func([]byte)
	done    chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

func (s *fakeStream) Done() <-chan struct{} { return s.done }
func (s *fakeStream) Err() error            { return hub.ErrStreamClosed }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.drop()
	return nil
}

func (s *fakeStream) drop() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeStream) send(frame string) {
	s.onFrame([]byte(frame))
}

// fakeDialer records every dial and hands out fakeStreams.
type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	dialed  chan *fakeStream
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeStream, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, onFrame func([]byte)) (supervisor.Stream, error) {
	s := &fakeStream{onFrame: onFrame, done: make(chan struct{})}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	d.dialed <- s
	return s, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *fakeDialer) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-d.dialed:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream dial")
		return nil
	}
}

// signals counts notifications delivered to one subscriber.
type signals struct {
	ch    chan struct{}
	count atomic.Int32
}

func subscribe(t *testing.T, c *Coordinator) *signals {
	t.Helper()
	s := &signals{ch: make(chan struct{}, 64)}
	unsubscribe := c.Subscribe(func() {
		s.count.Add(1)
		s.ch <- struct{}{}
	})
	t.Cleanup(unsubscribe)
	return s
}

func (s *signals) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func (s *signals) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-s.ch:
		t.Fatal("unexpected notification")
	case <-time.After(within):
	}
}

// startCoordinator starts a coordinator against fakes and returns it with
// the first stream.
func startCoordinator(t *testing.T, client *fakeClient) (*Coordinator, *fakeDialer, *fakeStream) {
	t.Helper()

	dialer := newFakeDialer()
	c := New(Config{PollInterval: time.Hour, ReconnectDelay: 30 * time.Millisecond}, client, dialer)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { c.Stop() })

	// Drain the startup fetch signal.
	<-client.entered
	return c, dialer, dialer.next(t)
}

// =============================================================================
// Startup
// =============================================================================

func TestStart_LoadsEnabledDevices(t *testing.T) {
	c, _, _ := startCoordinator(t, newFakeClient(twoDevices))

	got := make([]string, 0)
	for _, m := range c.Devices() {
		got = append(got, m.ID)
	}
	if diff := cmp.Diff([]string{"1", "2"}, got); diff != "" {
		t.Errorf("device ids mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Metadata("3"); ok {
		t.Error("disabled device 3 present")
	}
	if !c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after successful start")
	}
}

func TestStart_FirstFetchFailureIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		wantErr error
	}{
		{
			name:    "unreachable",
			err:     fmt.Errorf("%w: connection refused", hub.ErrUnreachable),
			wantErr: ErrConnect,
		},
		{
			name:    "bad status",
			err:     fmt.Errorf("%w: 500", hub.ErrBadStatus),
			wantErr: ErrFetch,
		},
		{
			name:    "malformed body",
			body:    `{"not":"a list"}`,
			wantErr: ErrFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(tt.body)
			client.respond(tt.body, tt.err)
			dialer := newFakeDialer()
			c := New(Config{PollInterval: time.Hour}, client, dialer)
			defer c.Stop()

			err := c.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
			if c.LastUpdateSuccess() {
				t.Error("LastUpdateSuccess() = true after failed start")
			}
			if dialer.count() != 0 {
				t.Errorf("stream dialled %d times after failed start", dialer.count())
			}
			if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
				t.Errorf("Refresh() error = %v, want ErrNotRunning", err)
			}
		})
	}
}

func TestStart_Twice(t *testing.T) {
	c, _, _ := startCoordinator(t, newFakeClient(twoDevices))

	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

// =============================================================================
// Snapshot fetcher
// =============================================================================

func TestRefresh_ReplacesMetadata(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, _ := startCoordinator(t, client)
	sig := subscribe(t, c)

	client.respond(`[{"id":2,"name":"Hall","device_type":"rgb_led"},{"id":9,"name":"New","device_type":"sensor"}]`, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	sig.wait(t)

	if _, ok := c.Metadata("1"); ok {
		t.Error("device 1 still present after it left the snapshot")
	}
	if _, ok := c.Metadata("9"); !ok {
		t.Error("device 9 missing after refresh")
	}
}

func TestRefresh_FailureKeepsMetadata(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, _ := startCoordinator(t, client)
	sig := subscribe(t, c)

	before := c.Devices()

	client.respond("", fmt.Errorf("%w: 503", hub.ErrBadStatus))
	if err := c.Refresh(context.Background()); !errors.Is(err, hub.ErrBadStatus) {
		t.Fatalf("Refresh() error = %v, want ErrBadStatus", err)
	}

	// A failed fetch still notifies so consumers re-evaluate availability.
	sig.wait(t)

	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after failed fetch")
	}
	if diff := cmp.Diff(before, c.Devices()); diff != "" {
		t.Errorf("metadata changed after failed fetch (-before +after):\n%s", diff)
	}
	if c.Stats().LastFetchError == "" {
		t.Error("Stats().LastFetchError empty after failure")
	}

	// Recovery flips availability back.
	client.respond(twoDevices, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after recovery")
	}
}

func TestRefresh_Periodic(t *testing.T) {
	client := newFakeClient(twoDevices)
	c := New(Config{PollInterval: 20 * time.Millisecond}, client, newFakeDialer())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	deadline := time.After(2 * time.Second)
	for client.fetches.Load() < 3 {
		select {
		case <-client.entered:
		case <-deadline:
			t.Fatalf("fetches = %d, want at least 3", client.fetches.Load())
		}
	}
}

func TestRefresh_ContextCancelled(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, _ := startCoordinator(t, client)

	gate := client.block()
	defer close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Refresh(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refresh() error = %v, want DeadlineExceeded", err)
	}
}

// =============================================================================
// Live-state path
// =============================================================================

func TestDeviceUpdate_OverwritesState(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	stream.send(`{"type":"device_update","device_id":2,"state":{"state":true,"brightness":100}}`)
	sig.wait(t)
	stream.send(`{"type":"device_update","device_id":2,"state":{"state":false}}`)
	sig.wait(t)

	want := device.LiveState{"state": false}
	if diff := cmp.Diff(want, c.LiveState("2")); diff != "" {
		t.Errorf("LiveState mismatch (-want +got):\n%s", diff)
	}
}

func TestDeviceUpdate_UnknownIDIgnored(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	stream.send(`{"type":"device_update","device_id":42,"state":{"state":true}}`)
	sig.wait(t)

	if c.cache.HasLiveState("42") {
		t.Error("live state created for unknown device 42")
	}
	// Disabled devices are unknown too.
	stream.send(`{"type":"device_update","device_id":3,"state":{"state":true}}`)
	sig.wait(t)
	if c.cache.HasLiveState("3") {
		t.Error("live state created for disabled device 3")
	}
}

func TestDeviceUpdate_Idempotent(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	const frame = `{"type":"device_update","device_id":"1","state":{"state":true,"multistate":{"port_a":true}}}`
	stream.send(frame)
	sig.wait(t)
	once := c.LiveState("1").Clone()

	stream.send(frame)
	sig.wait(t)

	if diff := cmp.Diff(once, c.LiveState("1")); diff != "" {
		t.Errorf("reapplying changed state (-once +twice):\n%s", diff)
	}
}

func TestInitialStates_FiltersPerEntry(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	stream.send(`{"type":"initial_states","states":[
		{"device_id":1,"state":{"state":true}},
		{"device_id":77,"state":{"state":true}}
	]}`)
	sig.wait(t)

	if v, _ := c.LiveState("1").Bool("state"); !v {
		t.Error("known device 1 not updated")
	}
	if c.cache.HasLiveState("77") {
		t.Error("unknown device 77 inserted")
	}
}

func TestInitialStates_EmptyStillNotifies(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	stream.send(`{"type":"initial_states","states":[]}`)
	sig.wait(t)
}

func TestMalformedFrame_NoNotification(t *testing.T) {
	c, _, stream := startCoordinator(t, newFakeClient(twoDevices))
	sig := subscribe(t, c)

	stream.send(`{not json`)
	stream.send(`{"type":"device_update","device_id":1,"state":"on"}`)
	stream.send(`{"type":"something_else"}`)
	stream.send(`{"type":"device_update","device_id":1,"state":{"state":true}}`)

	// Frames are applied in order, so the single notification belongs to the last one.
	sig.wait(t)
	sig.expectNone(t, 50*time.Millisecond)

	if got := sig.count.Load(); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
	if v, _ := c.LiveState("1").Bool("state"); !v {
		t.Error("valid frame after malformed ones was not applied")
	}
}

func TestStateSurvivesRefresh(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, stream := startCoordinator(t, client)
	sig := subscribe(t, c)

	stream.send(`{"type":"device_update","device_id":1,"state":{"state":true}}`)
	sig.wait(t)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if v, _ := c.LiveState("1").Bool("state"); !v {
		t.Error("live state lost on snapshot replacement")
	}
}

// =============================================================================
// Stream supervision and shutdown
// =============================================================================

func TestStreamDrop_Reconnects(t *testing.T) {
	c, dialer, stream := startCoordinator(t, newFakeClient(twoDevices))

	stream.drop()
	second := dialer.next(t)

	sig := subscribe(t, c)
	second.send(`{"type":"device_update","device_id":1,"state":{"state":true}}`)
	sig.wait(t)

	if dialer.count() != 2 {
		t.Errorf("dial count = %d, want 2", dialer.count())
	}
	if c.Stats().Stream.Reconnects != 1 {
		t.Errorf("Stream.Reconnects = %d, want 1", c.Stats().Stream.Reconnects)
	}
}

func TestStop_ClosesStreamAndStopsReconnects(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, dialer, stream := startCoordinator(t, client)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !stream.closed.Load() {
		t.Error("stream not closed on Stop")
	}

	time.Sleep(100 * time.Millisecond)
	if dialer.count() != 1 {
		t.Errorf("dial count after Stop = %d, want 1", dialer.count())
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Refresh() after Stop error = %v, want ErrNotRunning", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	// The frame handler must not block once stopped.
	done := make(chan struct{})
	go func() {
		for range 2 * defaultStreamBuffer {
			stream.send(`{"type":"initial_states","states":[]}`)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frame handler blocked after Stop")
	}
}

func TestStop_WaitsForInFlightFetch(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, _ := startCoordinator(t, client)

	gate := client.block()
	client.respond(`[{"id":5,"name":"Late","device_type":"switch"}]`, nil)

	refreshErr := make(chan error, 1)
	go func() { refreshErr <- c.Refresh(context.Background()) }()
	<-client.entered

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a fetch was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the fetch completed")
	}

	if err := <-refreshErr; err != nil {
		t.Errorf("Refresh() error = %v", err)
	}
	if _, ok := c.Metadata("5"); !ok {
		t.Error("in-flight fetch result not applied before shutdown")
	}
}

func TestStop_DuringFirstFetch(t *testing.T) {
	client := newFakeClient(twoDevices)
	gate := client.block()
	dialer := newFakeDialer()
	c := New(Config{PollInterval: 20 * time.Millisecond, ReconnectDelay: 30 * time.Millisecond}, client, dialer)

	startErr := make(chan error, 1)
	go func() { startErr <- c.Start(context.Background()) }()
	<-client.entered

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	close(gate)

	select {
	case err := <-startErr:
		if !errors.Is(err, ErrNotRunning) {
			t.Errorf("Start() error = %v, want ErrNotRunning", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	fetches := client.fetches.Load()
	time.Sleep(100 * time.Millisecond)
	if got := client.fetches.Load(); got != fetches {
		t.Errorf("fetches after Stop = %d, want %d", got, fetches)
	}
	if dialer.count() != 0 {
		t.Errorf("dial count = %d, want 0", dialer.count())
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Refresh() error = %v, want ErrNotRunning", err)
	}
	if c.Stats().Running {
		t.Error("Stats().Running = true after Stop")
	}
}

// =============================================================================
// Commands, stats, metrics
// =============================================================================

func TestSendCommand(t *testing.T) {
	client := newFakeClient(twoDevices)
	c, _, _ := startCoordinator(t, client)

	if err := c.SendCommand(context.Background(), "1", map[string]any{"state": true}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(c.LiveState("1")) != 0 {
		t.Error("SendCommand modified the cache")
	}

	client.mu.Lock()
	client.cmdErr = fmt.Errorf("%w: 500", hub.ErrCommand)
	client.mu.Unlock()
	if err := c.SendCommand(context.Background(), "1", map[string]any{"state": false}); !errors.Is(err, hub.ErrCommand) {
		t.Errorf("SendCommand() error = %v, want ErrCommand", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	want := []sentCommand{
		{ID: "1", Partial: map[string]any{"state": true}},
		{ID: "1", Partial: map[string]any{"state": false}},
	}
	if diff := cmp.Diff(want, client.commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestStats(t *testing.T) {
	c, _, _ := startCoordinator(t, newFakeClient(twoDevices))
	subscribe(t, c)

	stats := c.Stats()
	if stats.InstanceID == "" {
		t.Error("InstanceID empty")
	}
	if !stats.Running || !stats.LastUpdateSuccess {
		t.Errorf("Running/LastUpdateSuccess = %v/%v", stats.Running, stats.LastUpdateSuccess)
	}
	if stats.Devices != 2 || stats.Subscribers != 1 {
		t.Errorf("Devices/Subscribers = %d/%d, want 2/1", stats.Devices, stats.Subscribers)
	}
	if stats.LastFetch.IsZero() {
		t.Error("LastFetch is zero")
	}
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newFakeClient(twoDevices)
	dialer := newFakeDialer()
	c := New(Config{PollInterval: time.Hour}, client, dialer)
	c.SetMetrics(NewMetrics(reg))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if g := m.GetGauge(); g != nil {
				values[mf.GetName()] = g.GetValue()
			}
		}
	}
	if values["smarthome_bridge_devices"] != 2 {
		t.Errorf("devices gauge = %v, want 2", values["smarthome_bridge_devices"])
	}
	if values["smarthome_bridge_last_update_success"] != 1 {
		t.Errorf("last_update_success gauge = %v, want 1", values["smarthome_bridge_last_update_success"])
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.observeFetch(true, 0.1, 3)
	m.observeFrame(MessageDeviceUpdate)
	m.observeStates(1, 1)
	m.observeCommand(false)
	m.observeNotify()
	m.observeStream(true, false)
}
