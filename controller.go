package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdx/remotecontrol/apis"
	"github.com/mdx/remotecontrol/remote"
)

// waitForDeactivated holds startup until the local activate switch is down
// so the platform never starts out armed.
func waitForDeactivated(ctx context.Context, rc *remote.RemoteControl) bool {
	warned := false
	for rc.LocalActivated() {
		if !warned {
			log.Println("flip the activate switch down to proceed")
			warned = true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return true
}

func serviceLoop(ctx context.Context, rc *remote.RemoteControl, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rc.Service(); err != nil {
				log.Printf("service failed: %v\n", err)
			}
		}
	}
}

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	config := defaultConfig()
	if *configPath != "" {
		if err := config.load(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rcConfig, err := config.remoteConfig(apis.IsRaspberryPi())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	state := newAppState()
	var mirrors mirrorList
	rc, err := remote.New(newActionTable(state, &mirrors), rcConfig)
	if err != nil {
		log.Fatalf("could not create remote control: %v", err)
	}
	log.Printf("remote channels: %v\n", rc.Channels())
	state.reply = func(line string) {
		if err := rc.Send([]byte(line)); err != nil {
			log.Printf("could not reply to remotes: %v\n", err)
		}
	}

	if config.Tail.Listen != "" {
		tail := apis.NewTail(rc)
		mirrors = append(mirrors, tail)
		go func() {
			if err := tail.Run(ctx, config.Tail.Listen); err != nil {
				log.Printf("tail stopped: %v\n", err)
			}
		}()
	}
	if config.MQTT.Broker != "" {
		mq := apis.NewMQTTMirror(apis.MQTTOptions{
			Broker:   config.MQTT.Broker,
			ClientID: config.MQTT.ClientID,
			Topic:    config.MQTT.Topic,
		}, rc)
		if err := mq.Connect(); err != nil {
			log.Printf("mqtt disabled: %v\n", err)
		} else {
			defer mq.Close()
			mirrors = append(mirrors, mq)
		}
	}

	rc.Start(ctx)
	defer rc.Close()

	if waitForDeactivated(ctx, rc) {
		serviceLoop(ctx, rc, millis(config.TickMS))
	}
	log.Println("shutting down")
}
