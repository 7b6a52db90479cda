// Command effectsmixer is a demo host for the mixing engine: it opens a
// handful of WAV files named on the command line, assigns one to each
// channel, and runs the mixer until interrupted. Grounded on
// cmd/server/main.go's godotenv-then-config.Load()-then-signal-wait shape.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scalefx-mixer/internal/codec"
	"scalefx-mixer/internal/config"
	"scalefx-mixer/internal/mixer"
	"scalefx-mixer/internal/sink"
	"scalefx-mixer/internal/telemetry"
	"scalefx-mixer/internal/wav"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	sinkFlag := flag.String("sink", "mock", "output sink: mock, or a path to a raw PCM output file/device")
	codecFlag := flag.String("codec", "none", "codec driver: none, wolfson, ti-classd, simple-dac")
	loopFlag := flag.Bool("loop", false, "loop each file indefinitely instead of playing it once")
	gainFlag := flag.Float64("gain", 1.0, "initial per-channel gain, 0.0-1.0")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("usage: effectsmixer [flags] file1.wav [file2.wav ...]")
	}

	appCfg := config.Load()
	if appCfg.Mixer.NumChannels < len(files) {
		log.Printf("raising channel count from %d to %d to fit %d requested files",
			appCfg.Mixer.NumChannels, len(files), len(files))
		appCfg.Mixer.NumChannels = len(files)
	}

	snk, closeSink := buildSink(*sinkFlag)
	defer closeSink()

	cdc := buildCodec(*codecFlag)

	mix := mixer.New(appCfg.Mixer, wav.DefaultStorage, snk, cdc)
	if err := mix.Begin(); err != nil {
		log.Fatalf("mixer.Begin: %v", err)
	}
	log.Printf("mixer ready: %d Hz, %d channels, %d-frame blocks",
		appCfg.Mixer.SampleRate, appCfg.Mixer.NumChannels, appCfg.Mixer.BlockSize)

	loopCount := 0
	if *loopFlag {
		loopCount = mixer.LoopInfinite
	}
	for i, f := range files {
		opts := mixer.PlayOptions{Gain: *gainFlag, Routing: mixer.RoutingStereo, LoopCount: loopCount}
		if err := mix.Play(i, f, opts); err != nil {
			log.Printf("channel %d: failed to play %s: %v", i, f, err)
			continue
		}
		log.Printf("channel %d: playing %s (loop=%v)", i, f, *loopFlag)
	}

	telemetry.StartServer(appCfg.Telemetry)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := telemetry.NewCollector(mix, snk, time.Second)
	go collector.Run(ctx)

	runErr := make(chan error, 1)
	go func() { runErr <- mix.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("shutting down...")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			log.Printf("mixer run loop exited: %v", err)
		}
	}
	log.Println("goodbye")
}

// buildSink resolves the --sink flag into a Sink and its cleanup. "mock"
// keeps everything in memory; any other value is treated as a filesystem
// path the hardware sink writes raw interleaved PCM16 frames to, standing
// in for a real ALSA/I2S device until one is wired in.
func buildSink(spec string) (sink.Sink, func()) {
	if spec == "mock" {
		return sink.NewMockSink(0), func() {}
	}

	f, err := os.Create(spec)
	if err != nil {
		log.Fatalf("opening sink output %s: %v", spec, err)
	}
	return sink.NewHardwareSink(f), func() { f.Close() }
}

// buildCodec resolves the --codec flag into a Controller. Every concrete
// driver here is backed by a FakeBus since no real I2C transport exists
// in this host environment; wiring a real Bus implementation underneath
// is the hardware collaborator's job (spec §9).
func buildCodec(spec string) codec.Controller {
	switch spec {
	case "none", "":
		return nil
	case "wolfson":
		return codec.NewWolfsonDriver(codec.NewFakeBus(), 0x1A)
	case "ti-classd":
		return codec.NewTIClassDDriver(codec.NewFakeBus(), 0x4C)
	case "simple-dac":
		return codec.NewSimpleDACDriver()
	default:
		log.Fatalf("unknown codec %q (want: none, wolfson, ti-classd, simple-dac)", spec)
		return nil
	}
}
