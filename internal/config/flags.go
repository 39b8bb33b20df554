package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

type flags struct {
	config     string
	debug      bool
	kernel     string
	objects    string
	workers    int
	iterations int
	noWeld     bool
	logFile    string
}

// parseFlags parses labelmesh's command-line flags.
func parseFlags(args []string) (*flags, error) {
	f := &flags{iterations: -1}
	fs := flag.NewFlagSet("labelmesh", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "Path to config file")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.kernel, "kernel", "", "Mesher backend: marching or sdfx")
	fs.StringVar(&f.objects, "objects", "", "Comma-separated object ids to mesh")
	fs.IntVar(&f.workers, "workers", 0, "Blocks meshed concurrently")
	fs.IntVar(&f.iterations, "smooth", -1, "Smoothing iterations")
	fs.BoolVar(&f.noWeld, "no-weld", false, "Emit raw triangle soup")
	fs.StringVar(&f.logFile, "log-file", "", "Rotating log file path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.objects != "" {
		if _, err := parseIDs(f.objects); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// apply applies CLI flag overrides to the config.
func (f *flags) apply(cfg *Config) {
	if f.debug {
		cfg.Logging.Level = "debug"
	}
	if f.kernel != "" {
		cfg.Extraction.Kernel = f.kernel
	}
	if f.objects != "" {
		cfg.Predicate.Objects, _ = parseIDs(f.objects)
	}
	if f.workers > 0 {
		cfg.Extraction.Workers = f.workers
	}
	if f.iterations >= 0 {
		cfg.Extraction.SmoothingIterations = f.iterations
	}
	if f.noWeld {
		cfg.Extraction.Weld = false
	}
	if f.logFile != "" {
		cfg.Logging.LogFile = f.logFile
	}
}

func parseIDs(s string) ([]uint64, error) {
	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid object id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
