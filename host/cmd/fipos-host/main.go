package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"fipos/host/canio"
	"fipos/host/client"
	"fipos/protocol"
)

var (
	canIface = flag.String("can", "", "SocketCAN interface (e.g. can0)")
	slcanDev = flag.String("slcan", "", "SLCAN serial adapter device path")
	baud     = flag.Int("baud", 115200, "SLCAN adapter baud rate")
	posID    = flag.Uint("id", protocol.BroadcastID, "Positioner CAN address")
	verbose  = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	bus, err := dial()
	if err != nil {
		log.Fatalf("failed to open bus: %s", err)
	}
	defer bus.Close()

	c := client.New(bus, uint32(*posID))
	fmt.Printf("Connected; talking to positioner %d\n", c.ID())
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" {
			break
		}
		if err := run(c, words); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func dial() (canio.Bus, error) {
	switch {
	case *canIface != "" && *slcanDev != "":
		return nil, fmt.Errorf("choose one of -can and -slcan")
	case *canIface != "":
		return canio.DialSocketCAN(*canIface)
	case *slcanDev != "":
		return canio.DialSLCAN(*slcanDev, *baud)
	default:
		return nil, fmt.Errorf("no bus given; use -can or -slcan")
	}
}

func run(c *client.Client, words []string) error {
	cmd, args := words[0], words[1:]
	switch cmd {
	case "help":
		usage()
		return nil

	case "status":
		moving, err := c.Moving()
		if err != nil {
			return err
		}
		fmt.Printf("moving: %v\n", moving)
		return nil

	case "temp":
		v, err := c.Temperature()
		if err != nil {
			return err
		}
		fmt.Printf("temperature (raw): %d\n", v)
		return nil

	case "fw":
		v, err := c.FirmwareVersion()
		if err != nil {
			return err
		}
		fmt.Printf("firmware version: %d\n", v)
		return nil

	case "type":
		v, err := c.DeviceType()
		if err != nil {
			return err
		}
		fmt.Printf("device type: %d\n", v)
		return nil

	case "uid":
		w0, w1, w2, err := c.UID()
		if err != nil {
			return err
		}
		fmt.Printf("uid: %08X%08X%08X\n", w2, w1, w0)
		return nil

	case "addr":
		v, err := c.StoredAddress()
		if err != nil {
			return err
		}
		fmt.Printf("stored address: %d\n", v)
		return nil

	case "setaddr":
		v, err := argUint(args, 0, 0xFFFF)
		if err != nil {
			return err
		}
		return c.WriteAddress(v)

	case "move":
		return moveCmd(c, args, c.MoveNow)

	case "queue":
		return moveCmd(c, args, c.QueueMove)

	case "last":
		return moveCmd(c, args, c.FinishTable)

	case "exec":
		return c.Execute()

	case "currents":
		if len(args) != 8 {
			return fmt.Errorf("currents needs 8 values (percent)")
		}
		var v [8]uint8
		for i, a := range args {
			x, err := argUint([]string{a}, 0, 100)
			if err != nil {
				return err
			}
			v[i] = uint8(x)
		}
		return c.SetCurrents(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7])

	case "periods":
		if len(args) != 3 {
			return fmt.Errorf("periods needs creep0 creep1 spin")
		}
		c0, err := argUint(args, 0, 255)
		if err != nil {
			return err
		}
		c1, err := argUint(args, 1, 255)
		if err != nil {
			return err
		}
		sp, err := argUint(args, 2, 255)
		if err != nil {
			return err
		}
		return c.SetPeriods(uint8(c0), uint8(c1), uint8(sp))

	case "led":
		v, err := argUint(args, 0, 255)
		if err != nil {
			return err
		}
		return c.SetLED(uint8(v))

	case "testseq":
		return c.ToggleTestSequence()

	case "legacy":
		v, err := argUint(args, 0, 1)
		if err != nil {
			return err
		}
		return c.SetLegacyMode(v != 0)

	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

var moveTypes = map[string]uint8{
	"m0-creep-cw":   protocol.MoveM0CreepCW,
	"m0-creep-ccw":  protocol.MoveM0CreepCCW,
	"m0-cruise-cw":  protocol.MoveM0CruiseCW,
	"m0-cruise-ccw": protocol.MoveM0CruiseCCW,
	"m1-creep-cw":   protocol.MoveM1CreepCW,
	"m1-creep-ccw":  protocol.MoveM1CreepCCW,
	"m1-cruise-cw":  protocol.MoveM1CruiseCW,
	"m1-cruise-ccw": protocol.MoveM1CruiseCCW,
	"pause":         protocol.MovePauseOnly,
}

func moveCmd(c *client.Client, args []string, do func(uint8, uint32, uint16) error) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: move|queue|last <type> <steps> [pause-ms]")
	}
	mt, ok := moveTypes[args[0]]
	if !ok {
		return fmt.Errorf("unknown move type %q", args[0])
	}
	steps, err := argUint(args, 1, 0xFFFFFF)
	if err != nil {
		return err
	}
	pause := uint64(0)
	if len(args) > 2 {
		p, err := argUint(args, 2, 0xFFFF)
		if err != nil {
			return err
		}
		pause = uint64(p)
	}
	return do(mt, steps, uint16(pause))
}

func argUint(args []string, i int, max uint64) (uint32, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	v, err := strconv.ParseUint(args[i], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", args[i], err)
	}
	if uint64(v) > max {
		return 0, fmt.Errorf("%d out of range (max %d)", v, max)
	}
	return uint32(v), nil
}

func usage() {
	fmt.Println(`Commands:
  status                        movement status
  temp | fw | type | uid | addr data queries
  move <type> <steps> [pause]   immediate single move
  queue <type> <steps> [pause]  add a move to the table
  last <type> <steps> [pause]   finish + validate the table
  exec                          execute a validated table
  currents <8 x percent>        per-stage current scalars
  periods <creep0 creep1 spin>  per-stage tick periods
  led <state> | testseq         diagnostics
  legacy <0|1>                  legacy payload interpretation
  setaddr <id>                  rewrite the CAN address (uid-gated)
  quit`)
	fmt.Println("Move types:", strings.Join(sortedMoveTypes(), " "))
}

func sortedMoveTypes() []string {
	names := make([]string, 0, len(moveTypes))
	for n := range moveTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
