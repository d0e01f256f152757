package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/ats-checker/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting the ats-checker", zap.String("version", version))

	selector, err := newSelector(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("configuring llm vendors", zap.Error(err))
	}

	store, err := openHistory(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening history", zap.Error(err))
	}

	access, err := server.ParseHistoryAccess(config.Server.HistoryAccess)
	if err != nil {
		logger.Fatal("configuring history access", zap.Error(err))
	}

	var hist server.History
	if store != nil {
		defer store.Close()
		hist = store
	}

	srv := server.New(server.Config{
		Addr:           config.Server.Addr,
		MaxUploadBytes: maxUploadBytes(config),
		ReadTimeout:    parseDuration(config.Server.ReadTimeout, 30*time.Second),
		WriteTimeout:   parseDuration(config.Server.WriteTimeout, 3*time.Minute),
		HistoryAccess:  access,
	}, newAnalyzer(config, selector, store, logger), hist, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server failed", zap.Error(err))
	}
}
