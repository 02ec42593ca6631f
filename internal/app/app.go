// Package app wires configuration, the local store, the API client and the
// services into the peoplemeet command line client.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"peoplemeet-client/internal/api"
	"peoplemeet-client/internal/db"
	"peoplemeet-client/internal/services"

	"github.com/spf13/cobra"
)

// App holds one signed-in (or signing-in) session.
type App struct {
	cfg    Config
	store  *db.DB
	client *api.Client
	users  *services.UserService
	chat   *services.ChatService
	term   *Terminal
}

func newApp(cfg Config, out io.Writer) (*App, error) {
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client := api.New(cfg.APIURL, api.WithTimeout(cfg.RequestTimeout))
	users := services.NewUserService(client, store)
	term := NewTerminal(out)
	chat := services.NewChatService(services.ChatConfig{
		API:            client,
		Users:          users,
		Notifier:       term,
		Sound:          term,
		Scroller:       term,
		Sink:           term,
		ImageBaseURL:   cfg.APIURL,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	})

	return &App{cfg: cfg, store: store, client: client, users: users, chat: chat, term: term}, nil
}

// Close stops background work and closes the store.
func (a *App) Close() {
	a.chat.Close()
	if err := a.store.Close(); err != nil {
		log.Printf("Error closing local store: %v", err)
	}
}

// Execute runs the command line client.
func Execute() {
	if err := NewRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	cfg := LoadConfig()
	var app *App

	root := &cobra.Command{
		Use:           "peoplemeet",
		Short:         "People Meet client: see who is around and chat with them",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			app, err = newApp(cfg, out)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "API base URL")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "local store path")
	flags.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "poll interval")
	flags.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "request timeout")

	current := func() *App { return app }
	root.AddCommand(
		loginCommand(current),
		signupCommand(current),
		recoverCommand(current),
		logoutCommand(current),
		selfCommand(current),
		onlineCommand(current),
		offlineCommand(current),
		sendCommand(current),
		readCommand(current),
		removeCommand(current),
		chatsCommand(current),
		usersCommand(current),
		profileCommand(current),
		watchCommand(current),
	)
	return root
}

// watch runs both pollers until SIGINT or SIGTERM.
func (a *App) watch(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.term.SetLive(true)
	if err := a.chat.Start(ctx); err != nil {
		if errors.Is(err, services.ErrNoToken) {
			return errors.New("not signed in, run `peoplemeet login` first")
		}
		return err
	}
	a.chat.SetVisible(true)

	<-ctx.Done() // Block until signal
	log.Println("Gracefully shutting down...")
	a.chat.Close()
	log.Println("Shutdown complete")
	return nil
}
