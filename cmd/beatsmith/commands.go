package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbegin/beatsmith-go"
	"github.com/cbegin/beatsmith-go/internal/generate"
	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/server"
)

var (
	// generate flags
	genRequest generate.Request

	// play flags
	playLoops  int
	playVolume float64
	playMuted  []string

	// serve flags
	port int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a composition with the configured model",
	Long: `Generate a four-bar composition in the style of a producer and write
it as JSON.

Examples:
  beatsmith generate --producer "Metro Boomin" --vibe "Dark/Evil" -o loop.json
  beatsmith generate --producer Burial --key F# --bpm 138`,
	RunE: runGenerate,
}

var renderCmd = &cobra.Command{
	Use:   "render <composition.json>",
	Short: "Render a composition, or one layer of it, to WAV",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var midiCmd = &cobra.Command{
	Use:   "midi <composition.json>",
	Short: "Export a composition, or one layer of it, as a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDI,
}

var playCmd = &cobra.Command{
	Use:   "play <composition.json>",
	Short: "Loop a composition through the audio device",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for generation, live playback, mixing and exports.

Example:
  beatsmith serve --port 8080`,
	RunE: runServe,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genRequest.Producer, "producer", "", "producer archetype (required)")
	f.StringVar(&genRequest.Category, "category", "", "style category; derived from the producer when empty")
	f.StringVar(&genRequest.Vibe, "vibe", "", "mood, e.g. \"Dark/Evil\"")
	f.StringVar(&genRequest.Key, "key", "", "musical key root")
	f.Float64Var(&genRequest.BPM, "bpm", 0, "force a tempo instead of the model's choice")
	f.StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")
	_ = generateCmd.MarkFlagRequired("producer")

	for _, cmd := range []*cobra.Command{renderCmd, midiCmd} {
		cmd.Flags().StringVarP(&layerFilter, "layer", "l", "", "export only the named layer")
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default derived from the composition)")
	}

	playCmd.Flags().IntVar(&playLoops, "loops", 0, "stop after N loops (0 = until interrupted)")
	playCmd.Flags().Float64Var(&playVolume, "volume", -10, "master volume in dB")
	playCmd.Flags().StringSliceVar(&playMuted, "mute", nil, "instruments to mute, e.g. --mute bass,pad")

	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default $PORT)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	client, err := generate.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}
	c, err := client.Generate(ctx, genRequest)
	if err != nil {
		return err
	}
	if outputPath == "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	if err := score.Save(outputPath, c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d layers, %.0f bpm)\n", outputPath, len(c.Layers), c.BPM)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	c, err := score.Load(args[0])
	if err != nil {
		return err
	}
	s := beatsmith.NewSession(nil, beatsmith.NewRenderer(beatsmith.WithSampleRate(cfg.SampleRate)), nil)
	if err := s.Load(c); err != nil {
		return err
	}
	out, err := s.ExportWAV(cmd.Context(), layerFilter)
	if err != nil {
		return err
	}
	return writeExport(cmd, out)
}

func runMIDI(cmd *cobra.Command, args []string) error {
	c, err := score.Load(args[0])
	if err != nil {
		return err
	}
	m, err := beatsmith.ExportMIDI(c, layerFilter)
	if err != nil {
		return err
	}
	return writeExport(cmd, &beatsmith.Export{Data: m.Data, Filename: m.Filename, Warnings: m.Warnings})
}

func writeExport(cmd *cobra.Command, out *beatsmith.Export) error {
	path := outputPath
	if path == "" {
		path = filepath.Join(cfg.ExportDir, out.Filename)
	}
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, w := range out.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", w)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(out.Data))
	return nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	c, err := score.Load(args[0])
	if err != nil {
		return err
	}
	e, err := beatsmith.NewEngine(beatsmith.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return err
	}
	defer e.Close()

	e.SetVolume(playVolume)
	for _, id := range playMuted {
		e.SetTrackMute(score.Instrument(id), true)
	}
	if err := e.SetComposition(c); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := e.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "playing %s at %.0f bpm (%.2fs loop), ctrl-c to stop\n", c.ID, c.BPM, c.Duration())

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return nil
		case ev := <-e.Loops():
			fmt.Fprintf(cmd.OutOrStdout(), "loop %d completed (level %.1f dB)\n", ev.Count, e.Level())
			if playLoops > 0 && ev.Count >= playLoops {
				e.Stop()
				return nil
			}
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if port == 0 {
		p, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
		}
		port = p
	}

	var gen beatsmith.Generator
	if client, err := generate.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		logger.Warn("generation disabled", logger.Fields{"error": err.Error()})
	} else {
		gen = client
	}

	e, err := beatsmith.NewEngine(beatsmith.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return err
	}
	defer e.Close()

	session := beatsmith.NewSession(e, beatsmith.NewRenderer(beatsmith.WithSampleRate(cfg.SampleRate)), gen)
	return server.New(server.Config{Port: port}, session).Run(ctx)
}
