// Command tinyfpga-program flashes a JEDEC fuse map (or raw bitstream) onto
// a TinyFPGA A board over its JTAG-over-USB-serial programmer, following
// tinyproga.py's CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinyfpga/TinyFPGA-A-Programmer/bitstream"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/internal/xlog"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jedec"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/jtagops"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/programmer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/sequencer"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/svf"
	"github.com/tinyfpga/TinyFPGA-A-Programmer/transport"
)

// errDeviceNotFound marks a failed auto-discovery or port open, which exits 1 (usage-ish:
// nothing to program against) rather than 2 (a failure partway through
// actually talking to a found device).
var errDeviceNotFound = errors.New("TinyFPGA A not detected")

// defaultVIDPID is the TinyFPGA A programmer board's USB VID:PID, used for
// port auto-discovery, matching tinyproga.py's "1209:2101" comports() scan.
const defaultVIDPID = "1209:2101"

// baudRate is the board's fixed custom baud rate.
const baudRate = 12000000

const (
	exitOK      = 0
	exitUsage   = 1
	exitProgram = 2
)

type options struct {
	quiet     bool
	port      string
	bitstream bool
	svfFile   string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := &options{}

	ranProgram := false
	root := &cobra.Command{
		Use:   "tinyfpga-program [flags] file",
		Short: "Program a TinyFPGA A board over its JTAG-over-serial programmer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return programFile(cmd.Context(), opts, args[0], &ranProgram)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Silent mode.")
	flags.StringVarP(&opts.port, "port", "p", "", "Manually specify serial device.")
	flags.BoolVarP(&opts.bitstream, "bitstream", "b", false, "Input is a raw bitstream file.")
	flags.StringVar(&opts.svfFile, "svf", "", "Replay an SVF file instead of programming a device.")

	if err := root.Execute(); err != nil {
		if !ranProgram || errors.Is(err, errDeviceNotFound) {
			return exitUsage
		}
		fmt.Fprintln(os.Stderr, "Programming Failed!")
		fmt.Fprintln(os.Stderr, err)
		return exitProgram
	}
	return exitOK
}

// programFile does the actual work behind RunE. ranProgram is set to true
// once a port has been found and opened — only failures past that point
// (a device that talks back with garbage, a malformed input file, a failed
// program sequence) count as a programming failure (exit 2); a board that
// was never found or opened is a usage-level problem (exit 1).
func programFile(ctx context.Context, opts *options, path string, ranProgram *bool) error {
	xlog.SetQuiet(opts.quiet)
	log := xlog.Log

	portName := opts.port
	if portName == "" {
		discovered, err := transport.Discover(defaultVIDPID)
		if err != nil {
			return fmt.Errorf("%w: is it plugged in? (%s)", errDeviceNotFound, err)
		}
		portName = discovered
	}

	port, err := transport.Open(portName, baudRate)
	if err != nil {
		return fmt.Errorf("%w: %s", errDeviceNotFound, err)
	}
	*ranProgram = true

	link := transport.New(port)
	defer link.Close()

	prog := programmer.NewJTAG(link)
	ops := jtagops.New(prog)

	if opts.svfFile != "" {
		f, err := os.Open(opts.svfFile)
		if err != nil {
			return err
		}
		defer f.Close()
		log.Info("Replaying SVF file...")
		return svf.NewPlayer(ops).Run(f)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var src jedec.RowSource
	if opts.bitstream {
		log.Info("Parsing bitstream file...")
		src, err = bitstream.Read(f)
	} else {
		log.Info("Parsing JEDEC file...")
		src, err = jedec.Parse(f)
	}
	if err != nil {
		return err
	}

	log.WithField("port", portName).Info("Programming TinyFPGA A...")
	seq := sequencer.New(ops)
	progressErr := seq.Program(ctx, src, func(p sequencer.Progress) {
		log.WithFields(logrus.Fields{
			"rows":  p.Rows,
			"total": p.Total,
		}).Info(p.Phase)
	})
	if progressErr != nil {
		return progressErr
	}

	log.Info("Programming finished without error.")
	return nil
}
