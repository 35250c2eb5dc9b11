// Command ltx is the Linux Test Executor: a small agent that accepts
// framed commands on stdin, runs them as child processes, and relays
// their output and exit status back on stdout. It takes no CLI flags
// or subcommands — there is no configuration surface to build a
// command tree around.
package main

import (
	"os"

	"github.com/canonical/ltx/internal/agent"
	"github.com/canonical/ltx/internal/logging"
	"github.com/canonical/ltx/internal/reactor"
)

// version is baked in at build time and announced via a Log frame at
// startup.
const version = "0.1.0"

func main() {
	log := logging.New()

	ctx := agent.NewContext(log)
	ctx.Version = version
	ctx.StdinFd = int(os.Stdin.Fd())
	ctx.StdoutFd = int(os.Stdout.Fd())

	log.AddHook(logging.NewFrameHook(ctx, agent.MonotonicNowNS, ctx.ParentPID))

	react, err := reactor.New()
	if err != nil {
		agent.EmitFatal(log, err)
		os.Exit(1)
	}
	ctx.React = react
	defer react.Close()

	if err := ctx.MakeStdoutNonblocking(); err != nil {
		agent.EmitFatal(log, err)
		os.Exit(1)
	}

	log.WithField("version", version).Info("Starting")

	if err := ctx.Run(); err != nil {
		agent.EmitFatal(log, err)
		os.Exit(1)
	}

	log.Info("Stopped")
}
