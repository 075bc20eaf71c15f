// Command gwshell is a small interactive client for a fjåge-style
// container: it opens a Gateway per a YAML config file, subscribes to the
// topics the config lists, and prints every inbound message it receives
// until interrupted.
//
// Called by: operators exercising a running container from the command line.
// Calls: config.Load, fjage.OpenTCP/OpenSerial, fjage.Gateway.Receive.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	fjage "github.com/org-arl/go-fjage"
	"github.com/org-arl/go-fjage/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <config.yaml>", os.Args[0])
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("gwshell: load config: %v", err)
	}

	gw, err := open(cfg)
	if err != nil {
		log.Fatalf("gwshell: open gateway: %v", err)
	}
	defer gw.Close()

	fmt.Printf("gwshell: connected as %s\n", gw.AgentID())

	for _, topic := range cfg.Subscribe {
		if !gw.Subscribe(fjage.Topic(topic)) {
			log.Printf("gwshell: subscribe %q failed (buffer full?)", topic)
		}
	}

	closing := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("gwshell: interrupting...")
		close(closing)
		gw.Interrupt()
	}()

	for {
		select {
		case <-closing:
			return
		default:
		}
		msg, ok := gw.Receive("", "", 5*time.Second)
		if !ok {
			continue
		}
		fmt.Printf("[%s] %s from %s: %s\n", msg.Performative(), msg.Clazz(), msg.Sender(), msg.ID())
	}
}

func open(cfg *config.GatewayConfig) (*fjage.Gateway, error) {
	switch cfg.Transport {
	case "serial":
		return fjage.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.Settings, fjage.WithDebug(cfg.Debug))
	default:
		return fjage.OpenTCP(cfg.Addr(), fjage.WithDebug(cfg.Debug))
	}
}
