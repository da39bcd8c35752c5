package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

type loggerKey struct{}

func withLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// logger — логгер текущего взаимодействия (с request_id), иначе общий.
func (b *Bot) logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return b.log
}

// notifyRoster дублирует действие с ростером в канал уведомлений гильдии
// (уровень 3). Сводка ростера уходит в подвал. Сбой здесь не отменяет
// уже сделанную правку, поэтому только логируется.
func (b *Bot) notifyRoster(ctx context.Context, in *discord.Interaction, text string, e discord.Embed) {
	log := b.logger(ctx)
	n, err := b.store.Notify(ctx, in.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Warn("load notify", "err", err)
		return
	}
	if n.Level < store.NotifyAll {
		return
	}
	e.Author = author(in)
	e.Footer = &discord.EmbedFooter{Text: schemeOf(body(text)).Summarize(body(text)).String()}
	if _, err := b.platform.CreateMessage(ctx, n.ChannelID, discord.MessageSend{Embeds: []discord.Embed{e}}); err != nil {
		log.Warn("send roster notify", "err", err, "notify_channel_id", n.ChannelID)
	}
}

// mentions ищет участников гильдии по отображаемым именам из ростера.
// Если никого не нашли, упоминается роль клана (если задана).
func (b *Bot) mentions(ctx context.Context, guildID string, names []string) string {
	log := b.logger(ctx)
	found := make([]string, len(names))

	var g errgroup.Group
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			ms, err := b.platform.SearchMembers(ctx, guildID, name, 10)
			if err != nil {
				log.Warn("search member", "err", err, "name", name)
				return nil
			}
			for _, m := range ms {
				if m.DisplayName() == name && m.User != nil {
					found[i] = m.User.Mention()
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	seen := make(map[string]bool)
	for _, m := range found {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) > 0 {
		return strings.Join(out, " ")
	}

	role, err := b.store.ClanRole(ctx, guildID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("load clan role", "err", err)
		}
		return ""
	}
	return "<@&" + role.RoleID + ">"
}

var rePlaceholder = regexp.MustCompile(`\$(?:(\$)|([_A-Za-z][_A-Za-z0-9]*)|\{([_A-Za-z][_A-Za-z0-9]*)\})`)

// substitute подставляет $name и ${name}; "$$" даёт "$". Неизвестные
// плейсхолдеры остаются как есть.
func substitute(tmpl string, vals map[string]string) string {
	return rePlaceholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := rePlaceholder.FindStringSubmatch(m)
		if sub[1] != "" {
			return "$"
		}
		key := sub[2]
		if key == "" {
			key = sub[3]
		}
		if v, ok := vals[key]; ok {
			return v
		}
		return m
	})
}
