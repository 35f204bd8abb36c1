package main

import (
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"fipos/host/canio"
	"fipos/host/client"
)

var (
	canIface = flag.String("can", "", "SocketCAN interface (e.g. can0)")
	slcanDev = flag.String("slcan", "", "SLCAN serial adapter device path")
	baud     = flag.Int("baud", 115200, "SLCAN adapter baud rate")
	posID    = flag.Uint("id", 65535, "Positioner CAN address")
	file     = flag.String("file", "", "Firmware image to download")
	gap      = flag.Duration("gap", 0, "Pause between data packets (e.g. 500us)")
	verbose  = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *file == "" {
		log.Fatal("no firmware image given; use -file")
	}

	image, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("failed to read image: %s", err)
	}

	var bus canio.Bus
	switch {
	case *canIface != "":
		bus, err = canio.DialSocketCAN(*canIface)
	case *slcanDev != "":
		bus, err = canio.DialSLCAN(*slcanDev, *baud)
	default:
		log.Fatal("no bus given; use -can or -slcan")
	}
	if err != nil {
		log.Fatalf("failed to open bus: %s", err)
	}
	defer bus.Close()

	c := client.New(bus, uint32(*posID))
	log.WithField("id", c.ID()).Info("reset the positioner now; waiting for the loader")

	start := time.Now()
	report, err := c.Flash(image, *gap)
	if err != nil {
		log.Fatalf("download aborted: %s", err)
	}
	if !report.OK {
		log.Fatalf("%s", report)
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info(report.String())
}
