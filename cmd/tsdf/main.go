// Command-line interface for fusing depth frames into a sparse TSDF volume
// and extracting its surface vertices.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/janelia-flyem/tsdf/core"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")

	// Profile memory usage using standard gotest system.
	memprofile = flag.String("memprofile", "", "")

	// Number of logical CPUs to use.
	useCPU = flag.Int("numcpu", 0, "")

	// stopping is set once an interrupt is captured so long-running commands
	// can finish the current frame and save.
	stopping atomic.Bool
)

const helpMessage = `
tsdf fuses depth frames into a sparse truncated signed distance volume

Usage: tsdf [options] <command>

      -cpuprofile =string   Write CPU profile to this file.
      -memprofile =string   Write memory profile to this file on exit.
      -numcpu     =number   Number of logical CPUs to use.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	integrate <config.toml>             Fuse the configured depth frames.
	extract   <config.toml> [output]    Extract surface vertices of a stored volume.
	info      <config.toml>             List volumes in the configured store.
	delete    <config.toml> <name>      Delete a stored volume.

An integrate run resumes the stored volume of the configured name if one exists
and writes surface vertices if [extract] output is set.
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}

	if *runVerbose {
		core.Verbose = true
		core.SetLogMode(core.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Use all logical CPUs unless overridden.
	if *useCPU > 0 {
		core.NumCPU = *useCPU
	}
	runtime.GOMAXPROCS(core.NumCPU)

	// Capture ctrl+c and other interrupts.  The first lets the current command
	// finish its frame and save; a second exits immediately.
	stopSig := make(chan os.Signal, 1)
	go func() {
		for sig := range stopSig {
			if stopping.Swap(true) {
				log.Printf("Second stop signal captured: %q.  Exiting...\n", sig)
				os.Exit(1)
			}
			log.Printf("Stop signal captured: %q.  Shutting down after current frame...\n", sig)
		}
	}()
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)

	err := DoCommand(flag.Args())
	if *memprofile != "" {
		writeHeapProfile(*memprofile)
	}
	core.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		os.Exit(1)
	}
}

func writeHeapProfile(path string) {
	log.Printf("Storing memory profiling to %s...\n", path)
	f, err := os.Create(path)
	if err != nil {
		log.Printf("Unable to create memory profile: %v\n", err)
		return
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("Unable to write memory profile: %v\n", err)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("Blank command!")
	}
	argument := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch strings.ToLower(args[0]) {
	case "about":
		fmt.Println(Versions())
		return nil
	case "integrate":
		return DoIntegrate(argument(1))
	case "extract":
		return DoExtract(argument(1), argument(2))
	case "info":
		return DoInfo(argument(1))
	case "delete":
		return DoDelete(argument(1), argument(2))
	default:
		return fmt.Errorf("unknown command %q, use 'tsdf help' for usage", args[0])
	}
}
