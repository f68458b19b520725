package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dpedu/b2mirror/internal/utils"
	"github.com/dpedu/b2mirror/internal/version"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// logCloser flushes the --log-file sink, if any, on exit
var logCloser io.Closer

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Mirror a local directory into a B2 or S3 bucket",
		Version:       version.Detailed(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logFile, _ := cmd.Flags().GetString("log-file")
			closer, err := setupLogging(verbose, logFile)
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default ~/.config/b2mirror/config.{json,yaml})")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-file", "", "also write logs to this file")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newPruneCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func setupLogging(verbose bool, logFile string) (io.Closer, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	if logFile == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return nil, nil
	}

	if err := utils.EnsureParent(logFile); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return multiCloser{logInterceptor, file}, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
