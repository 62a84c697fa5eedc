package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romanzh1/mnemosyne/internal/deckfile"
	"github.com/romanzh1/mnemosyne/internal/handler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// SIGINT и SIGTERM останавливают сервер и бота
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "mnemosyne",
	Short:        "Spaced-repetition flashcards with study analytics",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		svc, err := a.service(ctx)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           handler.NewRouter(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("http server started", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve http (addr: %s): %w", srv.Addr, err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		zap.L().Info("http server stopped")
		return nil
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram study bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.TelegramBotToken == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required for the bot")
		}

		svc, err := a.service(cmd.Context())
		if err != nil {
			return err
		}

		bot, err := handler.NewTelegramHandler(a.cfg.TelegramBotToken, svc)
		if err != nil {
			return fmt.Errorf("create telegram handler: %w", err)
		}

		bot.Start(cmd.Context())
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := a.repo.Reset(ctx); err != nil {
				return fmt.Errorf("reset schema: %w", err)
			}
			zap.L().Warn("schema reset, all data dropped")
		}

		version, err := a.repo.Up(ctx)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		fmt.Printf("Schema version: %d\n", version)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <deck.yaml>",
	Short: "Import cards from a YAML deck file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open deck file: %w", err)
		}
		defer f.Close()

		deck, err := deckfile.Parse(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.service(cmd.Context())
		if err != nil {
			return err
		}

		n, err := deckfile.Import(cmd.Context(), svc, deck)
		fmt.Printf("Imported %d of %d cards\n", n, len(deck.Cards))
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("reset", false, "Drop every table before migrating")
	rootCmd.AddCommand(importCmd)
}
