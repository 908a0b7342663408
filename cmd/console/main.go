// Command console is a supplementary operator tool: it lets a human
// inject DOOR_ISSUE/STUCK faults live, alongside whatever the floor
// subsystem's scenario file is already replaying. It talks directly to
// the scheduler's port using the same wire frames a scenario fault would
// produce.
package main

import (
	"fmt"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/config"
	"github.com/mkallander/elevatorsim/internal/obslog"
	"github.com/mkallander/elevatorsim/internal/transport"
	"github.com/mkallander/elevatorsim/internal/wire"
)

func main() {
	args := config.ProcessCmdArgs("console")
	building, err := config.Load(args.ConfigPath)
	if err != nil {
		obslog.Get().Fatal().Err(err).Msg("loading building config")
	}
	ports := config.DefaultPorts()

	log := obslog.GetConfigured(zerolog.InfoLevel).With().Str("component", "console").Logger()

	sock, err := transport.NewSocket(0)
	if err != nil {
		log.Fatal().Err(err).Msg("opening console socket")
	}
	defer sock.Close()

	if err := keyboard.Open(); err != nil {
		log.Fatal().Err(err).Msg("opening keyboard")
	}
	defer keyboard.Close()

	fmt.Println("Fault injection console:")
	fmt.Printf("  d 0-%d   inject a DOOR_ISSUE on that car\n", building.Elevators-1)
	fmt.Printf("  s 0-%d   inject a STUCK on that car\n", building.Elevators-1)
	fmt.Println("  Ctrl+C   quit")

	var pending wire.Tag
	haveTag := false

	for {
		char, key, err := keyboard.GetSingleKey()
		if err != nil {
			log.Error().Err(err).Msg("reading keyboard input")
			return
		}
		if key == keyboard.KeyCtrlC {
			return
		}

		switch {
		case !haveTag && (char == 'd' || char == 'D'):
			pending, haveTag = wire.DoorIssue, true
		case !haveTag && (char == 's' || char == 'S'):
			pending, haveTag = wire.Stuck, true
		case haveTag && char >= '0' && char <= '9':
			car := int(char - '0')
			if car >= building.Elevators {
				fmt.Printf("no such car: %d\n", car)
			} else {
				frame := wire.EncodeCarFrame(pending, car)
				if err := sock.SendTo(ports.Scheduler, frame); err != nil {
					log.Error().Err(err).Msg("failed to send injected fault")
				} else {
					fmt.Printf("sent %s{car=%d}\n", pending, car)
				}
			}
			haveTag = false
		default:
			haveTag = false
		}
	}
}
