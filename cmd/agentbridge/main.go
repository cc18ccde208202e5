// Command agentbridge runs the voice-and-vision agent bridge connecting a
// Janus Gateway room to a streaming AI endpoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/bridge"
	"github.com/andrija/agentbridge/internal/config"
)

var (
	cfgFile string
	v       = viper.New()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentbridge",
		Short: "Bridges a Janus Gateway room to a streaming AI voice/vision agent",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("janus-url", "", "Janus WebSocket URL")
	root.PersistentFlags().Int("room", 0, "Janus AudioBridge/VideoRoom room ID")
	root.PersistentFlags().String("rtp-host", "", "IP advertised to Janus as our RTP receiver")
	root.PersistentFlags().Int("rtp-port", 0, "UDP port bound for audio RTP")
	root.PersistentFlags().String("ai-api-key", "", "AI service API key")
	root.PersistentFlags().String("model", "", "AI model identifier")
	root.PersistentFlags().String("voice", "", "AI voice preset name")
	root.PersistentFlags().String("system-prompt", "", "AI system instruction")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "human-readable development logging")
	root.PersistentFlags().Bool("debug-audio", false, "record session audio to WAV files")
	root.PersistentFlags().String("debug-audio-dir", "", "directory for debug WAV files")
	root.PersistentFlags().String("greeting-template", "", "greeting instruction template, %s is the participant name")

	bindFlag(root, "janus.websocket_url", "janus-url")
	bindFlag(root, "janus.room_id", "room")
	bindFlag(root, "janus.rtp_host", "rtp-host")
	bindFlag(root, "janus.rtp_port", "rtp-port")
	bindFlag(root, "ai.api_key", "ai-api-key")
	bindFlag(root, "ai.model", "model")
	bindFlag(root, "ai.voice", "voice")
	bindFlag(root, "ai.system_instruction", "system-prompt")
	bindFlag(root, "log_level", "log-level")
	bindFlag(root, "verbose", "verbose")
	bindFlag(root, "debug_audio", "debug-audio")
	bindFlag(root, "debug_audio_dir", "debug-audio-dir")
	bindFlag(root, "greeting_template", "greeting-template")

	root.AddCommand(newServeCmd(), newHealthCmd(), newGetCmd(), newVersionCmd())
	return root
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if f := cmd.PersistentFlags().Lookup(flag); f != nil {
		v.BindPFlag(key, f)
	}
}

func loadSettings() (*config.Settings, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return config.Load(v)
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
	}
	return cfg.Build()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			log, err := newLogger(settings.LogLevel, settings.Verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			if errs := settings.Validate(); len(errs) > 0 {
				for _, e := range errs {
					log.Error("configuration error", zap.Error(e))
				}
				return fmt.Errorf("invalid configuration")
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Info("shutdown signal received")
				cancel()
			}()

			b := bridge.New(log, settings)
			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("start bridge: %w", err)
			}

			b.RunUntilStopped(ctx)
			b.Stop()
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that configuration is valid (Janus and the AI service are not contacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if errs := settings.Validate(); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				return fmt.Errorf("configuration invalid")
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	var timeoutSecs int
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Start the bridge briefly and print a status snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			log, err := newLogger(settings.LogLevel, settings.Verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSecs)*time.Second)
			defer cancel()

			b := bridge.New(log, settings)
			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("start bridge: %w", err)
			}
			defer b.Stop()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(b.GetStatus())
		},
	}
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 10, "seconds allowed for bridge startup; status is printed as soon as startup completes")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

const version = "0.1.0"
