// SPDX-License-Identifier: Apache-2.0

// bridged is the worker-process daemon: it binds the bridge transport and
// answers every job with a loopback sequence of STATUS, PROGRESS, and RESULT
// envelopes so the client side can be exercised without an inference engine.
// The real engine replaces the loopback processor via transport.Options.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loopholelabs/logging"

	"github.com/tessellate/bridge/internal/shutdown"
	"github.com/tessellate/bridge/pkg/config"
	"github.com/tessellate/bridge/pkg/message"
	"github.com/tessellate/bridge/pkg/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file (defaults apply when unset)")
	flag.Parse()

	logger := logging.New(logging.Zerolog, "bridged", os.Stdout)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	var controller *transport.Controller
	loopback := func(job any) {
		_ = controller.EnqueueResponse(&message.Envelope{
			Code:    message.CodeStatus,
			Message: "job received",
		})
		_ = controller.EnqueueResponse(&message.Envelope{
			Code:    message.CodeProgress,
			Message: "100%",
		})
		_ = controller.EnqueueResponse(&message.Envelope{
			Code:    message.CodeResult,
			Message: job,
		})
	}

	controller, err := transport.New(&transport.Options{
		Config: cfg,
		Submit: loopback,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	err = controller.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	watcher := shutdown.Watch(ctx, controller.Close)

	<-ctx.Done()
	err = watcher.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
