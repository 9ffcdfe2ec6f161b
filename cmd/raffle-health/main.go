// Package main probes the raffle server health endpoint and exits non-zero
// when the server is not serving.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/prizewheel/internal/platform/config"
	"github.com/louisbranch/prizewheel/internal/tools/healthprobe"
)

func main() {
	cfg, err := healthprobe.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := healthprobe.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("health probe: %v", err)
	}
}
