package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/clanbattlebot/internal/bot"
	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/doccache"
	"github.com/EgorLis/clanbattlebot/internal/status"
	"github.com/EgorLis/clanbattlebot/internal/store"
	"github.com/EgorLis/clanbattlebot/internal/store/postgres"
	"github.com/EgorLis/clanbattlebot/internal/store/sqlite"
	"github.com/EgorLis/clanbattlebot/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "clanbot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bot.LoadConfig()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "адрес статус-сервера, пусто — выключен")
	flag.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "postgres:// URL или путь к файлу SQLite")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "clanbot", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown", "err", err)
		}
	}()

	st, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	rest := discord.NewClient(cfg.Token, cfg.ApplicationID)
	if err := registerCommands(ctx, rest, cfg.GuildIDs); err != nil {
		return err
	}

	rosters := doccache.New()
	b, err := bot.New(cfg, rest, st, bot.WithLogger(log), bot.WithRosterCache(rosters))
	if err != nil {
		return err
	}

	gwOpts := []discord.GatewayOption{discord.WithLogger(log.With("component", "gateway"))}
	if u, err := rest.GatewayURL(ctx); err == nil && u != "" {
		gwOpts = append(gwOpts, discord.WithGatewayURL(strings.TrimSuffix(u, "/")+"/?v=10&encoding=json"))
	} else if err != nil {
		log.Warn("gateway url, using default", "err", err)
	}
	gw := discord.NewGateway(cfg.Token, discord.IntentGuilds, gwOpts...)
	gw.OnReady = func(self *discord.User) {
		if self != nil {
			log.Info("gateway ready", "user", self.Username)
		}
	}
	gw.OnInteraction = b.HandleInteraction

	log.Info("clanbot running", "guilds", len(cfg.GuildIDs), "status_addr", cfg.StatusAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return b.RunReports(gctx) })
	if cfg.StatusAddr != "" {
		srv := status.New(rosters, log.With("component", "status"))
		g.Go(func() error { return srv.Run(gctx, cfg.StatusAddr) })
	}
	err = g.Wait()
	log.Info("clanbot stopped")
	return err
}

func openStore(ctx context.Context, url string) (store.Store, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(ctx, url)
	}
	return sqlite.Open(url)
}

// registerCommands перезаписывает слэш-команды: по гильдиям из GUILD_IDS
// (появляются сразу) или глобально.
func registerCommands(ctx context.Context, rest *discord.Client, guilds []string) error {
	cmds := bot.Commands()
	if len(guilds) == 0 {
		guilds = []string{""}
	}
	for _, g := range guilds {
		if err := rest.RegisterCommands(ctx, g, cmds); err != nil {
			return fmt.Errorf("register commands (guild %q): %w", g, err)
		}
	}
	return nil
}
