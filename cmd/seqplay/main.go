// Package main is the entry point for the seqplay CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cbegin/seqplay-go"
	"github.com/cbegin/seqplay-go/internal/api"
	"github.com/cbegin/seqplay-go/internal/config"
	"github.com/cbegin/seqplay-go/internal/song"
	"github.com/cbegin/seqplay-go/internal/tui"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	volume     float64

	fromSeconds   float64
	fromBar       int
	recordingPath string
	offsetSeconds float64

	outputFile    string
	renderSeconds float64

	serverAddr string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "seqplay",
	Short: "Play Standard MIDI Files with bar-aware transport control",
	Long: `seqplay plays Standard MIDI Files through a small built-in synth, or
follows a recording of the same piece, with seeking by beat, bar and page.

Examples:
  seqplay play song.mid --bar 17
  seqplay play song.mid --recording take.mp3 --offset 0.35
  seqplay info song.mid
  seqplay render song.mid -o song.wav
  seqplay tui song.mid
  seqplay serve song.mid --addr :8080`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var playCmd = &cobra.Command{
	Use:   "play <file.mid>",
	Short: "Play a file to the end",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var infoCmd = &cobra.Command{
	Use:   "info <file.mid>",
	Short: "Show tracks, tempos and measures",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var renderCmd = &cobra.Command{
	Use:   "render <file.mid>",
	Short: "Render to a 32-bit float WAV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var tuiCmd = &cobra.Command{
	Use:   "tui <file.mid>",
	Short: "Launch interactive terminal transport",
	Args:  cobra.ExactArgs(1),
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve <file.mid>",
	Short: "Start the HTTP transport API",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config <path>",
	Short: "Write the effective configuration to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Save(args[0], cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "seqplay.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Float64Var(&volume, "volume", 1, "Master volume scalar")

	for _, c := range []*cobra.Command{playCmd, tuiCmd, serveCmd} {
		c.Flags().StringVar(&recordingPath, "recording", "", "Play this WAV, MP3 or Ogg recording instead of the synth")
		c.Flags().Float64Var(&offsetSeconds, "offset", 0, "Recording offset against the sequence, in seconds")
	}
	playCmd.Flags().Float64Var(&fromSeconds, "from", 0, "Start position in seconds")
	playCmd.Flags().IntVar(&fromBar, "bar", 0, "Start at this 1-based bar (overrides --from)")

	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: input with .wav)")
	renderCmd.Flags().Float64Var(&renderSeconds, "seconds", 0, "Seconds to render (default: whole file)")

	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (default from config)")

	rootCmd.AddCommand(playCmd, infoCmd, renderCmd, tuiCmd, serveCmd, configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Level(cfg.Level())
	return nil
}

func playerOptions() []seqplay.PlayerOption {
	return []seqplay.PlayerOption{
		seqplay.WithSampleRate(cfg.SampleRate),
		seqplay.WithLogger(log.Logger),
		seqplay.WithPageBars(cfg.PageBars),
		seqplay.WithMasterGain(cfg.MasterGain),
		seqplay.WithSynthParams(cfg.Synth),
		seqplay.WithCompaction(cfg.Compaction.PitchBend, cfg.Compaction.Controller),
	}
}

func openPlayer(path string, extra ...seqplay.PlayerOption) (*seqplay.Player, error) {
	p, err := seqplay.Open(path, append(playerOptions(), extra...)...)
	if err != nil {
		return nil, err
	}
	p.SetMasterVolume(volume)
	if recordingPath != "" {
		if err := p.UseRecording(recordingPath, offsetSeconds); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPlay(cmd *cobra.Command, args []string) error {
	p, err := openPlayer(args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signalContext()
	defer stop()

	start := fromSeconds
	if fromBar > 0 {
		start = p.Timing().TicksToSeconds(float64(p.Timing().BarStartTick(float64(fromBar))))
	}
	events := p.Watch()
	if err := p.PlayFrom(ctx, start); err != nil {
		return err
	}
	st := p.Status()
	log.Info().Str("file", filepath.Base(args[0])).Int("bar", st.Bar).Float64("duration", st.Duration).Msg("playing")

	for {
		select {
		case <-ctx.Done():
			p.Pause()
			log.Info().Float64("at", p.Position()).Msg("stopped")
			return nil
		case ev := <-events:
			if ev.Kind == seqplay.EventPlaybackEnded {
				fmt.Println("playback completed")
				return nil
			}
		}
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	seq, err := song.ReadFile(args[0])
	if err != nil {
		return err
	}
	m := seq.Timing()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", seq.Name)
	fmt.Fprintf(out, "  resolution  %d ticks/quarter\n", seq.TicksPerQuarter)
	fmt.Fprintf(out, "  duration    %d ticks, %.3f s\n", seq.DurationTicks, seq.DurationSeconds)
	fmt.Fprintf(out, "  bars        %d (%d pages of %g bars)\n", m.BarCount(), m.PageCount(cfg.PageBars), cfg.PageBars)
	fmt.Fprintf(out, "  notes       %d on channels %v\n\n", seq.NoteCount(), seq.Channels())

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEMPO\tTICK\tSECONDS\tBAR")
	for _, t := range m.Tempos() {
		bb := m.BarBeatAtTicks(float64(t.Tick))
		fmt.Fprintf(w, "%.2f bpm\t%d\t%.3f\t%d.%d\n", t.BPM, t.Tick, m.TicksToSeconds(float64(t.Tick)), bb.Bar, bb.Beat)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "METER\tTICK\tBAR\t")
	for _, ts := range m.TimeSignatures() {
		bb := m.BarBeatAtTicks(float64(ts.Tick))
		fmt.Fprintf(w, "%d/%d\t%d\t%d\t\n", ts.Numerator, ts.Denominator, ts.Tick, bb.Bar)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TRACK\tCHANNEL\tNOTES\tCONTROLLERS\tBENDS")
	for _, t := range seq.Tracks {
		kind := ""
		if t.IsDrum {
			kind = " (drums)"
		}
		fmt.Fprintf(w, "%s\t%d%s\t%d\t%d\t%d\n", t.Name, t.Channel+1, kind, len(t.Notes), len(t.ControlChanges), len(t.PitchBends))
	}
	return w.Flush()
}

func runRender(cmd *cobra.Command, args []string) error {
	seq, err := song.ReadFile(args[0])
	if err != nil {
		return err
	}
	opts := playerOptions()
	samples, err := seqplay.RenderSamples(seq, cfg.SampleRate, renderSeconds, opts...)
	if err != nil {
		return err
	}
	for i := range samples {
		samples[i] *= float32(volume)
	}
	out := outputFile
	if out == "" {
		out = args[0][:len(args[0])-len(filepath.Ext(args[0]))] + ".wav"
	}
	if err := os.WriteFile(out, seqplay.EncodeWAVFloat32LE(samples, cfg.SampleRate, 2), 0644); err != nil {
		return err
	}
	log.Info().Str("output", out).Float64("seconds", float64(len(samples)/2)/float64(cfg.SampleRate)).Msg("rendered")
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; keep logs out of it.
	log.Logger = log.Logger.Level(zerolog.Disabled)
	p, err := openPlayer(args[0], seqplay.WithLogger(zerolog.Nop()))
	if err != nil {
		return err
	}
	defer p.Close()
	return tui.Run(filepath.Base(args[0]), p)
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := openPlayer(args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signalContext()
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	addr := serverAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := api.New(p, api.WithLogger(log.Logger), api.WithPositionRate(cfg.Server.PositionHz))
	return srv.Run(ctx, addr)
}
