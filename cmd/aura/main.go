package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/env"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/vehicle"
)

var dumpConfig bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&dumpConfig, "dump-config", dumpConfig, "Print the effective configuration and exit.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.MustLoad()
	if dumpConfig {
		if err := conf.Dump(os.Stdout); err != nil {
			log.Fatalln(err)
		}
		return
	}

	v, err := vehicle.New(conf)
	if err != nil {
		log.Fatalln(err)
	}
	glog.Infof("vehicle %s session %s", conf.VehicleID, v.Events.Session())
	runner := framework.NewRunner().HandleSignals()
	if err := runner.Go(framework.NamedRun("vehicle", framework.RunFunc(v.Run))).Wait(); err != nil {
		log.Fatalln(err)
	}
}
