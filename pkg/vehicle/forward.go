package vehicle

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/remote"
)

// Forwarder relays board sensor packets to the ground with their
// payloads unchanged.
type Forwarder struct {
	Remote *remote.Manager
}

// HandleFrame implements packet.Handler.
func (f *Forwarder) HandleFrame(ctx context.Context, frame *packet.Frame) {
	var err error
	switch frame.ID {
	case packet.BoardGPS:
		err = f.Remote.GPS(ctx, frame.Payload)
	case packet.BoardIMU:
		err = f.Remote.IMU(ctx, frame.Payload)
	case packet.BoardBaro:
		err = f.Remote.AirData(ctx, frame.Payload)
	case packet.BoardPilot:
		err = f.Remote.Pilot(ctx, frame.Payload)
	case packet.BoardAnalog:
		_, err = f.Remote.Health(ctx, frame.Payload)
	default:
		return
	}
	if err != nil {
		glog.V(1).Infof("forward %s: %v", frame.ID, err)
	}
}
