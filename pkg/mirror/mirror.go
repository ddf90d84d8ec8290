// Package mirror republishes link frames to MQTT so ground monitors
// can follow the traffic without sharing the link.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/any"
	"golang.org/x/time/rate"

	"github.com/robotalks/aura.go/pkg/packet"
)

// TypeURLPrefix prefixes the packet id in an envelope's type URL.
const TypeURLPrefix = "aura/packet/"

// Defaults.
const (
	DefaultRate  = 50
	DefaultBurst = 20
)

// Config of the mirror.
type Config struct {
	// URL is the MQTT broker, e.g. mqtt://host:1883/aura/. Empty disables mirroring.
	URL string `mapstructure:"url" yaml:"url"`
	// Rate limits published frames per second across all links.
	Rate  float64 `mapstructure:"rate" yaml:"rate"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// Publisher is satisfied by mqtt.Queue.
type Publisher interface {
	Pub(topic string, payload []byte) paho.Token
}

// Mirror publishes frames as protobuf Any envelopes to
// <vehicle>/<link>/<packet-name>.
type Mirror struct {
	Publisher Publisher
	VehicleID string

	limiter   *rate.Limiter
	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Mirror.
func New(pub Publisher, vehicleID string, conf Config) *Mirror {
	r, burst := conf.Rate, conf.Burst
	if r <= 0 {
		r = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Mirror{
		Publisher: pub,
		VehicleID: vehicleID,
		limiter:   rate.NewLimiter(rate.Limit(r), burst),
	}
}

// Topic returns the topic of a frame, relative to the queue prefix.
func (m *Mirror) Topic(linkName string, id packet.ID) string {
	return m.VehicleID + "/" + linkName + "/" + id.String()
}

// Tap returns a frame handler mirroring a link's frames.
func (m *Mirror) Tap(linkName string) packet.Handler {
	return packet.HandleFrameFunc(func(_ context.Context, f *packet.Frame) {
		m.Publish(linkName, f)
	})
}

// Publish sends one frame unless the rate limit is exhausted.
func (m *Mirror) Publish(linkName string, f *packet.Frame) bool {
	if !m.limiter.Allow() {
		m.dropped.Add(1)
		return false
	}
	data, err := Envelope(f)
	if err != nil {
		glog.Warningf("mirror: encode %s: %v", f.ID, err)
		return false
	}
	m.Publisher.Pub(m.Topic(linkName, f.ID), data)
	m.published.Add(1)
	return true
}

// Counts returns the published and rate-dropped frame counts.
func (m *Mirror) Counts() (published, dropped uint64) {
	return m.published.Load(), m.dropped.Load()
}

// Envelope encodes a frame as a protobuf Any.
func Envelope(f *packet.Frame) ([]byte, error) {
	return proto.Marshal(&any.Any{
		TypeUrl: TypeURLPrefix + strconv.Itoa(int(f.ID)),
		Value:   f.Payload,
	})
}

// Decode parses an envelope back into a frame.
func Decode(data []byte) (*packet.Frame, error) {
	var env any.Any
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(env.TypeUrl, TypeURLPrefix) {
		return nil, fmt.Errorf("unexpected type url %q", env.TypeUrl)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(env.TypeUrl, TypeURLPrefix), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid packet id in %q: %w", env.TypeUrl, err)
	}
	payload := env.Value
	if payload == nil {
		payload = []byte{}
	}
	return &packet.Frame{ID: packet.ID(id), Payload: payload}, nil
}
