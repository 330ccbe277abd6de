package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"uartdma/host/config"
	"uartdma/host/loopback"
	"uartdma/host/serial"
)

var (
	device     = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud       = flag.Int("baud", 9600, "Baud rate (must match the firmware)")
	configPath = flag.String("config", "", "JSON config file")
	count      = flag.Int("count", 100, "Number of probes to send")
	size       = flag.Int("size", 16, "Payload bytes per probe")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
	skipBanner = flag.Bool("skip-banner", false, "Do not wait for the reset banner")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.LogLevel)

	port, err := serial.Open(cfg.Serial())
	if err != nil {
		log.Error().Err(err).Msg("open failed")
		os.Exit(1)
	}
	defer port.Close()
	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("port open")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lbCfg := cfg.Loopback()
	lbCfg.Logger = &log
	tester, err := loopback.New(port, lbCfg)
	if err != nil {
		log.Error().Err(err).Msg("bad test settings")
		os.Exit(2)
	}
	tester.Start(ctx)

	if !cfg.SkipBanner {
		log.Info().Msg("waiting for banner, reset the board")
		bctx, cancel := context.WithTimeout(ctx, cfg.BannerTimeout())
		err := tester.WaitBanner(bctx)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("no banner")
			os.Exit(1)
		}
	}

	report, err := tester.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("loopback failed")
		os.Exit(1)
	}

	fmt.Println(report.String())
	if !report.OK() {
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies flags given on the command line
func loadConfig() (*config.HostConfig, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "baud":
			cfg.Baud = *baud
		case "count":
			cfg.Count = *count
		case "size":
			cfg.PayloadSize = *size
		case "skip-banner":
			cfg.SkipBanner = *skipBanner
		case "verbose":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
