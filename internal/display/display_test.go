package display

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	nmerr "netmoded/internal/errors"
	"netmoded/internal/metrics"
	"netmoded/internal/netmode"
	"netmoded/internal/runner"
	"netmoded/util"
)

// fakeRenderer records frames and can block or fail on demand.
type fakeRenderer struct {
	mu      sync.Mutex
	frames  []Frame
	err     error
	blockch chan struct{} // first render waits for this when non-nil
}

func (f *fakeRenderer) Render(ctx context.Context, frame Frame) error {
	f.mu.Lock()
	block := f.blockch
	f.blockch = nil
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return f.err
}

func (f *fakeRenderer) rendered() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame(nil), f.frames...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFrameFor(t *testing.T) {
	tests := []struct {
		name  string
		event netmode.Event
		want  Frame
	}{
		{
			name: "successful client transition",
			event: netmode.Event{
				Kind:  netmode.EventTransition,
				State: netmode.ModeState{Current: netmode.ModeClient},
				Info: netmode.NetInfo{
					SSID: "HomeNet", IPAddress: "192.168.1.7",
					Signal: 96, Internet: true,
				},
			},
			want: Frame{
				Mode: "client", SSID: "HomeNet", IPAddress: "192.168.1.7",
				Signal: 96, Internet: true,
			},
		},
		{
			name: "access point with clients",
			event: netmode.Event{
				Kind:  netmode.EventAdopted,
				State: netmode.ModeState{Current: netmode.ModeAccessPoint},
				Info:  netmode.NetInfo{SSID: "FrameSetup", IPAddress: "10.42.0.1", Clients: 2},
			},
			want: Frame{
				Mode: "access_point", SSID: "FrameSetup",
				IPAddress: "10.42.0.1", Clients: 2,
			},
		},
		{
			name: "failed transition",
			event: netmode.Event{
				Kind: netmode.EventTransition,
				State: netmode.ModeState{
					Current:       netmode.ModeClient,
					LastErrorKind: nmerr.KindTimeout,
				},
				Info: netmode.NetInfo{IPAddress: "192.168.1.7"},
				Err:  fmt.Errorf("activation timed out"),
			},
			want: Frame{
				Mode: "client", IPAddress: "192.168.1.7",
				ErrorKind: nmerr.KindTimeout, Message: "mode switch failed",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frameFor(tt.event)
			if got.At.IsZero() {
				t.Error("At not stamped")
			}
			got.At = time.Time{}
			if got != tt.want {
				t.Errorf("frameFor = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestListener_RendersEvents(t *testing.T) {
	fr := &fakeRenderer{}
	m := metrics.New()
	l := NewListener(util.NewLogger(0), fr, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Notify(netmode.Event{
		Kind:  netmode.EventTransition,
		State: netmode.ModeState{Current: netmode.ModeAccessPoint},
	})

	waitFor(t, func() bool { return len(fr.rendered()) == 1 })
	if got := fr.rendered()[0].Mode; got != "access_point" {
		t.Errorf("rendered mode %q, want access_point", got)
	}
	if m.Renders() != 1 {
		t.Errorf("renders = %d, want 1", m.Renders())
	}
}

func TestListener_CoalescesBursts(t *testing.T) {
	release := make(chan struct{})
	fr := &fakeRenderer{blockch: release}
	l := NewListener(util.NewLogger(0), fr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	// First event reaches the renderer and stalls there.
	l.Notify(netmode.Event{State: netmode.ModeState{Current: netmode.ModeClient}})
	waitFor(t, func() bool {
		fr.mu.Lock()
		defer fr.mu.Unlock()
		return fr.blockch == nil
	})

	// A burst arrives while the renderer is busy.  Only the newest
	// survives.
	for i := 0; i < 5; i++ {
		l.Notify(netmode.Event{
			State: netmode.ModeState{Current: netmode.ModeAccessPoint},
			Info:  netmode.NetInfo{Clients: i},
		})
	}
	close(release)

	waitFor(t, func() bool { return len(fr.rendered()) == 2 })
	time.Sleep(20 * time.Millisecond)

	frames := fr.rendered()
	if len(frames) != 2 {
		t.Fatalf("rendered %d frames, want 2 (stalled + newest)", len(frames))
	}
	if frames[1].Clients != 4 {
		t.Errorf("second render saw Clients=%d, want the newest burst entry 4", frames[1].Clients)
	}
}

func TestListener_RenderFailureDoesNotStopIt(t *testing.T) {
	fr := &fakeRenderer{err: fmt.Errorf("display unplugged")}
	m := metrics.New()
	l := NewListener(util.NewLogger(0), fr, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Notify(netmode.Event{State: netmode.ModeState{Current: netmode.ModeClient}})
	waitFor(t, func() bool { return m.RenderFailures() == 1 })

	// Still alive and rendering.
	fr.mu.Lock()
	fr.err = nil
	fr.mu.Unlock()
	l.Notify(netmode.Event{State: netmode.ModeState{Current: netmode.ModeAccessPoint}})
	waitFor(t, func() bool { return len(fr.rendered()) == 2 })
}

// captureRunner records the Spec it was handed.
type captureRunner struct {
	mu    sync.Mutex
	specs []runner.Spec
}

func (c *captureRunner) Run(ctx context.Context, spec runner.Spec) (runner.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = append(c.specs, spec)
	return runner.Output{}, nil
}

func TestCommandRenderer_PipesJSON(t *testing.T) {
	cr := &captureRunner{}
	r := NewCommandRenderer(util.NewLogger(0), cr,
		[]string{"inky-render", "--rotate", "180"}, 30*time.Second)

	frame := Frame{
		Mode: "client", SSID: "HomeNet", IPAddress: "192.168.1.7",
		Internet: true, At: time.Now(),
	}
	if err := r.Render(context.Background(), frame); err != nil {
		t.Fatalf("Render: %v", err)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()
	if len(cr.specs) != 1 {
		t.Fatalf("ran %d commands, want 1", len(cr.specs))
	}
	spec := cr.specs[0]
	if spec.Name != "inky-render" || len(spec.Args) != 2 {
		t.Errorf("command = %s, want inky-render --rotate 180", spec.String())
	}
	if spec.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want the display deadline", spec.Timeout)
	}

	var decoded Frame
	if err := json.Unmarshal(spec.Stdin, &decoded); err != nil {
		t.Fatalf("stdin is not valid JSON: %v", err)
	}
	if decoded.Mode != "client" || decoded.SSID != "HomeNet" || !decoded.Internet {
		t.Errorf("decoded frame = %+v", decoded)
	}
}
