package main

import (
	"fmt"
	_ "net/http/pprof" //nolint:gosec // pprof handlers are only reachable on the profiler address
	"os"

	"github.com/joho/godotenv"
	"github.com/ordishs/gocore"

	"github.com/emberchain/embernode/daemon"
	"github.com/emberchain/embernode/settings"
	"github.com/emberchain/embernode/ulogger"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "embernode"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			printUsage()
			return
		}
	}

	// A .env file, when present, seeds the environment before gocore reads it.
	_ = godotenv.Load()

	tSettings := settings.NewSettings()

	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	stats := gocore.Config().Stats()
	logger.Infof("STATS\n%s\nVERSION\n-------\n%s (%s)\n\n", stats, version, commit)

	daemon.New(daemon.WithLoggerFactory(func(serviceName string) ulogger.Logger {
		return ulogger.New(serviceName, ulogger.WithLevel(tSettings.LogLevel))
	})).Start(logger, os.Args[1:], tSettings)
}

func printUsage() {
	fmt.Println("usage: embernode [options]")
	fmt.Println("where options are:")
	fmt.Println("")
	fmt.Println("    -miner=<1|0>")
	fmt.Println("          run the miner, overriding the miner_enabled setting")
	fmt.Println("")
	fmt.Println("    -wait_for_postgres=1")
	fmt.Println("          wait for the blockchain store's postgres to accept connections")
	fmt.Println("")
	fmt.Println("    -help")
	fmt.Println("          show this help")
	fmt.Println("")
	fmt.Println("all other configuration comes from settings.conf or the environment,")
	fmt.Println("see settings/settings.go for the available keys and their defaults")
}
