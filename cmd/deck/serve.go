package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/config"
	"github.com/zulandar/testdeck/internal/dashboard"
	"github.com/zulandar/testdeck/internal/db"
	"github.com/zulandar/testdeck/internal/janitor"
	"github.com/zulandar/testdeck/internal/notify"
	"github.com/zulandar/testdeck/internal/notify/discord"
	"github.com/zulandar/testdeck/internal/notify/slack"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Testdeck API server",
		Long: `Starts the JSON API, serves uploaded attachments and runs the attachment
janitor on its schedule. Tables are migrated on start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedSettings(gormDB, cfg); err != nil {
		return err
	}
	files, err := openStore(cfg)
	if err != nil {
		return err
	}
	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	var j *janitor.Janitor
	if cfg.Attachments.GCSchedule != "off" {
		if j, err = janitor.New(gormDB, files, cfg.Attachments.GCSchedule, cfg.Attachments.GCGrace); err != nil {
			return err
		}
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dashboard.Start(ctx, dashboard.StartOpts{
			DB:       gormDB,
			Files:    files,
			Notifier: notifier,
			BasePath: cfg.Server.BasePath,
			Port:     port,
			Out:      out,
		})
	})

	if j != nil {
		fmt.Fprintf(out, "Attachment janitor scheduled %q (grace %s)\n", cfg.Attachments.GCSchedule, cfg.Attachments.GCGrace)
		g.Go(func() error { return j.Run(ctx) })
	}

	return g.Wait()
}

// buildNotifier returns a sender for every enabled chat integration, or nil
// when none is configured.
func buildNotifier(cfg config.NotifyConfig) (notify.Sender, error) {
	var senders notify.Multi
	if cfg.Slack.Enabled() {
		s, err := slack.New(slack.SenderOpts{BotToken: cfg.Slack.Token, ChannelID: cfg.Slack.Channel})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if cfg.Discord.Enabled() {
		s, err := discord.New(discord.SenderOpts{BotToken: cfg.Discord.Token, ChannelID: cfg.Discord.Channel})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	switch len(senders) {
	case 0:
		return nil, nil
	case 1:
		return senders[0], nil
	default:
		return senders, nil
	}
}
