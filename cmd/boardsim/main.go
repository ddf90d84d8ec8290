package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/sim"
)

var (
	listenAddr = ":5060"
	silentIDs  string
	conf       = sim.Config{Origin: sim.Origin{LatDeg: 45.1, LonDeg: -93.2, AltM: 280}}
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address the autopilot's board link connects to.")
	flag.Float64Var(&conf.Origin.LatDeg, "lat", conf.Origin.LatDeg, "Start latitude in degrees.")
	flag.Float64Var(&conf.Origin.LonDeg, "lon", conf.Origin.LonDeg, "Start longitude in degrees.")
	flag.Float64Var(&conf.Origin.AltM, "alt", conf.Origin.AltM, "Altitude in meters.")
	flag.DurationVar(&conf.Interval, "interval", conf.Interval, "Sensor report interval.")
	flag.StringVar(&silentIDs, "silent", silentIDs, "Comma separated packet ids never acknowledged.")
}

func main() {
	flag.Parse()
	for _, s := range strings.Split(silentIDs, ",") {
		if s == "" {
			continue
		}
		id, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			log.Fatalf("invalid packet id %q", s)
		}
		conf.Silent = append(conf.Silent, packet.ID(id))
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalln(err)
	}
	runner := framework.NewRunner().HandleSignals()
	err = runner.Go(framework.RunFunc(func(ctx context.Context) error {
		return sim.Serve(ctx, ln, conf)
	})).Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalln(err)
	}
}
