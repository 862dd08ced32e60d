package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/handchord/internal/app"
	"github.com/ayusman/handchord/internal/audio"
	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/logger"
	"github.com/ayusman/handchord/internal/metrics"
	"github.com/ayusman/handchord/internal/midiout"
	"github.com/ayusman/handchord/internal/recorder"
	"github.com/ayusman/handchord/internal/server"
	"github.com/ayusman/handchord/internal/store"
	"github.com/ayusman/handchord/internal/tray"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("power", false, "power the instrument on at startup")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the instrument and its web UI",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Named("serve")

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()

	m := metrics.NewManager(metrics.WithNamespace("handchord"))
	graph := audio.NewGraph(cfg.SampleRate)

	encoder := recorder.NewFFmpeg(cfg.FFmpegPath)
	if !encoder.Available() {
		log.Warn(ctx, "ffmpeg not found, recordings will fail", logger.String("path", cfg.FFmpegPath))
	}

	appCfg := app.Config{
		Graph:       graph,
		Output:      audio.NewOutput(graph),
		Camera:      capture.NewCamera(cfg.CameraID),
		NewDetector: detectorFactory(cfg),
		Encoder:     encoder,
		Store:       st,
		Metrics:     m,
		FrameRate:   cfg.FrameRate,
		StageFPS:    cfg.StageFPS,
	}

	if cfg.MIDIPort != "" {
		defer midiout.CloseDriver()
		mirror, err := midiout.Open(cfg.MIDIPort)
		if err != nil {
			log.Warn(ctx, "midi mirror disabled", logger.Error(err), logger.Any("ports", midiout.Ports()))
		} else {
			appCfg.Chords = mirror
			log.Info(ctx, "mirroring chords to midi", logger.String("port", cfg.MIDIPort))
		}
	}

	a, err := app.New(appCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Info(ctx, "serving static files", logger.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Metrics:   m,
		StageFPS:  cfg.StageFPS,
	})
	httpSrv := srv.HTTPServer(cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting server", logger.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if power, _ := cmd.Flags().GetBool("power"); power {
		if err := a.Start(ctx); err != nil {
			log.Error(ctx, "power on at startup failed", logger.Error(err))
		}
	}

	if cfg.Tray {
		// systray owns the main thread until Quit
		tr := newTray(ctx, a, stop, uiURL(cfg.Addr))
		go func() {
			select {
			case <-ctx.Done():
			case <-errCh:
				stop()
			}
			tr.Quit()
		}()
		tr.Run()
	} else {
		select {
		case <-ctx.Done():
		case err, ok := <-errCh:
			if ok && err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func detectorFactory(cfg *config.Config) app.DetectorFactory {
	return func(ctx context.Context) (detector.Detector, error) {
		dc := detector.DefaultConfig()
		dc.MaxHands = cfg.MaxHands
		dc.ScriptPath = cfg.DetectorScript
		dc.PythonPath = cfg.PythonPath

		d, err := detector.NewMediaPipeDetector(dc)
		if err != nil {
			return nil, err
		}
		if err := d.Init(); err != nil {
			return nil, err
		}
		return d, nil
	}
}

func newTray(ctx context.Context, a *app.App, quit func(), url string) *tray.Tray {
	tr := tray.New()
	tr.OnPower(func(on bool) error {
		if on {
			return a.Start(ctx)
		}
		a.Stop()
		return nil
	})
	tr.OnWaveform(func() string {
		return a.NextWaveform().String()
	})
	tr.OnRecord(func(format string) error {
		f, err := recorder.ParseFormat(format)
		if err != nil {
			return err
		}
		return a.StartRecording(ctx, f)
	})
	tr.OnFinish(func() error {
		_, _, err := a.FinishRecording(ctx)
		return err
	})
	tr.OnOpenUI(func() { openBrowser(url) })
	tr.OnQuit(quit)

	events, _ := a.Subscribe()
	go func() {
		for ev := range events {
			switch ev.Type {
			case app.EventState:
				if s, ok := ev.Data.(app.Status); ok {
					tr.SetPowered(s.Power == app.StateRunning)
					tr.SetWaveform(s.Audio.Waveform.String())
				}
			case app.EventRecording:
				if r, ok := ev.Data.(app.RecordingEvent); ok {
					if r.Active {
						tr.SetRecording(string(r.Format))
					} else {
						tr.SetRecording("")
					}
				}
			}
		}
	}()
	return tr
}

func uiURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
