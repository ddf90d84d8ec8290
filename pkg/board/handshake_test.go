package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/aura.go/pkg/packet"
)

func u16(v uint16) *uint16 { return &v }

func fullConfig() Config {
	return Config{
		Kind:         KindAPM2,
		SerialNumber: u16(1234),
		PWMRates:     []PWMRate{{Channel: 0, Hz: 50}, {Channel: 2, Hz: 400}},
		Gains:        []Gain{{Channel: 0, Gain: 1}, {Channel: 3, Gain: -0.5}},
		Mix:          []Mix{{Mode: "elevon", Enable: true, Gain1: 0.5, Gain2: 0.5}},
		SAS:          []SAS{{Mode: "pitch", Enable: true, Gain: 0.2}},
	}.WithDefaults()
}

func newTestHandshake(clock *fakeClock, fb *fakeBoard, conf Config) *APM2 {
	b := NewAPM2WithPort(conf, fb)
	b.now = clock.Now
	b.Handshake.Now = clock.Now
	b.Handshake.Sleep = clock.Sleep
	b.Handshake.PollInterval = 50 * time.Millisecond
	return b
}

func TestHandshakeAllAcked(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	b := newTestHandshake(clock, fb, fullConfig())

	results, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.NoError(t, err)
	require.Len(t, results, 7)
	for _, r := range results {
		require.True(t, r.Acked, r.Step.Name)
		require.NoError(t, r.Err)
	}
	require.Equal(t, []packet.ID{
		packet.SerialNumber,
		packet.PWMRate,
		packet.ActGain,
		packet.ActGain,
		packet.MixMode,
		packet.SASMode,
		packet.WriteEEPROM,
	}, fb.sentIDs())
	require.Equal(t, AckRecord{ID: packet.WriteEEPROM}, b.LastAck())
}

func TestHandshakeTimeoutContinues(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.silent[packet.PWMRate] = true
	b := newTestHandshake(clock, fb, fullConfig())

	results, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrHandshakeTimeout))
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, "pwm-rates", stepErr.Step)

	require.Len(t, results, 7)
	pwm := results[1]
	require.False(t, pwm.Acked)
	require.Equal(t, ErrHandshakeTimeout, pwm.Err)
	require.True(t, pwm.Elapsed > DefaultAckTimeout, "failed after %s", pwm.Elapsed)
	for n, r := range results {
		if n != 1 {
			require.True(t, r.Acked, r.Step.Name)
		}
	}
}

func TestHandshakeAckAtDeadline(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.delay = DefaultAckTimeout
	b := newTestHandshake(clock, fb, Config{Kind: KindAPM2}.WithDefaults())

	results, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Acked)
	require.Equal(t, DefaultAckTimeout, results[0].Elapsed)
}

func TestHandshakeAbortOnTimeout(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.silent[packet.SerialNumber] = true
	conf := fullConfig()
	conf.AbortOnTimeout = true
	b := newTestHandshake(clock, fb, conf)

	results, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.Error(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []packet.ID{packet.SerialNumber}, fb.sentIDs())
}

func TestHandshakeMatchesSubID(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.wrongSub = true
	conf := Config{Kind: KindAPM2, Gains: []Gain{{Channel: 1, Gain: 1}}, SkipEEPROM: true}.WithDefaults()
	b := newTestHandshake(clock, fb, conf)

	results, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.Error(t, err)
	require.Len(t, results, 1)
	require.Equal(t, ErrHandshakeTimeout, results[0].Err)
	require.Equal(t, AckRecord{ID: packet.ActGain, SubID: 2}, b.LastAck())
}

func TestHandshakeClearsStaleAck(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.silent[packet.WriteEEPROM] = true
	b := newTestHandshake(clock, fb, Config{Kind: KindAPM2}.WithDefaults())
	b.ack = AckRecord{ID: packet.WriteEEPROM}

	res := b.Handshake.RunStep(context.Background(), Step{Name: "eeprom", ID: packet.WriteEEPROM})
	require.False(t, res.Acked)
	require.Equal(t, ErrHandshakeTimeout, res.Err)
}

func TestHandshakeObserver(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.silent[packet.WriteEEPROM] = true
	b := newTestHandshake(clock, fb, Config{Kind: KindAPM2, SerialNumber: u16(7)}.WithDefaults())
	var seen []StepResult
	b.Handshake.Observer = StepCompletedFunc(func(r StepResult) { seen = append(seen, r) })

	_, err := b.Handshake.Run(context.Background(), b.Config.Steps())
	require.Error(t, err)
	require.Len(t, seen, 2)
	require.True(t, seen[0].Acked)
	require.False(t, seen[1].Acked)
}

func TestHandshakeCanceled(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	b := newTestHandshake(clock, fb, fullConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := b.Handshake.Run(ctx, b.Config.Steps())
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, results)
	require.Empty(t, fb.sentIDs())
}

func TestHandshakeResumePending(t *testing.T) {
	clock := newFakeClock()
	fb := newFakeBoard(clock)
	fb.silent[packet.MixMode] = true
	b := newTestHandshake(clock, fb, fullConfig())
	steps := b.Config.Steps()

	results, err := b.Handshake.Run(context.Background(), steps)
	require.Error(t, err)
	retry := b.Handshake.Resume(steps, results)
	require.False(t, retry.Done())
	require.Equal(t, []string{"mix elevon", "write-eeprom"}, retry.Pending())

	require.Len(t, b.Handshake.Resume(steps, nil).Pending(), len(steps))

	acked := b.Handshake.Resume(steps[:2], results[:2])
	require.True(t, acked.Done())
	require.True(t, acked.Advance(context.Background()))
}
