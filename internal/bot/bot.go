package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/doccache"
	"github.com/EgorLis/clanbattlebot/internal/roster"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

// Platform — то, что бот делает с Discord. *discord.Client его реализует.
type Platform interface {
	Respond(ctx context.Context, in *discord.Interaction, resp discord.InteractionResponse) error
	EditOriginal(ctx context.Context, token string, edit discord.MessageEdit) (*discord.Message, error)
	ChannelMessage(ctx context.Context, channelID, messageID string) (*discord.Message, error)
	CreateMessage(ctx context.Context, channelID string, send discord.MessageSend) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, edit discord.MessageEdit) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SearchMembers(ctx context.Context, guildID, query string, limit int) ([]discord.Member, error)
}

type Bot struct {
	platform Platform
	store    store.Store
	appID    string
	admins   func(userID string) bool

	rosters *doccache.Cache // ростеры: заголовок из двух строк
	reports *doccache.Cache // поле "3凸完了": заголовок "-----"

	log    *slog.Logger
	tracer trace.Tracer

	reportHour int
	reportLoc  *time.Location
	now        func() time.Time
}

type Option func(*Bot)

func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// WithRosterCache подменяет кэш ростеров (его же читает статус-сервер).
func WithRosterCache(c *doccache.Cache) Option {
	return func(b *Bot) { b.rosters = c }
}

// WithClock подменяет часы планировщика.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

func New(cfg Config, p Platform, st store.Store, opts ...Option) (*Bot, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	b := &Bot{
		platform:   p,
		store:      st,
		appID:      cfg.ApplicationID,
		admins:     cfg.IsAdmin,
		rosters:    doccache.New(),
		reports:    doccache.New(doccache.WithHeaderLines(1)),
		log:        slog.Default(),
		tracer:     otel.Tracer("github.com/EgorLis/clanbattlebot/internal/bot"),
		reportHour: cfg.ReportHour,
		reportLoc:  loc,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Rosters — кэш актуальных текстов ростеров.
func (b *Bot) Rosters() *doccache.Cache { return b.rosters }

// HandleInteraction разбирает одно взаимодействие. Вызывается из горутины
// шлюза; ошибки уходят в лог и, если можно, пользователю.
func (b *Bot) HandleInteraction(ctx context.Context, in *discord.Interaction) {
	start := time.Now()
	log := b.log.With(
		"request_id", uuid.NewString(),
		"guild_id", in.GuildID,
		"channel_id", in.ChannelID,
	)
	if u := in.Actor(); u != nil {
		log = log.With("user_id", u.ID)
	}

	name := in.Data.Name
	if in.Type != discord.InteractionApplicationCmd {
		name = in.Data.CustomID
	}
	ctx, span := b.tracer.Start(ctx, "interaction "+route(name),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int("discord.interaction.type", in.Type),
			attribute.String("discord.guild_id", in.GuildID),
			attribute.String("discord.channel_id", in.ChannelID),
		))
	defer span.End()

	switch in.Type {
	case discord.InteractionApplicationCmd:
		log = log.With("command", name)
	case discord.InteractionMessageComponent, discord.InteractionModalSubmit:
		log = log.With("custom_id", name)
	}
	ctx = withLogger(ctx, log)

	var err error
	switch in.Type {
	case discord.InteractionPing:
		err = b.platform.Respond(ctx, in, discord.InteractionResponse{Type: discord.ResponsePong})
	case discord.InteractionApplicationCmd:
		err = b.handleCommand(ctx, in)
	case discord.InteractionMessageComponent, discord.InteractionModalSubmit:
		err = b.handleComponent(ctx, in)
	default:
		log.Debug("interaction ignored", "type", in.Type)
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("interaction failed", "err", err, "took", time.Since(start))
		if rerr := b.reply(ctx, in, err.Error()); rerr != nil {
			log.Warn("error reply failed", "err", rerr)
		}
		return
	}
	log.Info("interaction handled", "took", time.Since(start))
}

// route — custom_id без аргументов после ":".
func route(customID string) string {
	r, _, _ := strings.Cut(customID, ":")
	return r
}

func (b *Bot) handleComponent(ctx context.Context, in *discord.Interaction) error {
	id := in.Data.CustomID
	r, args, _ := strings.Cut(id, ":")
	switch r {
	case "attack_select":
		return b.attackSelect(ctx, in)
	case "target_damage":
		return b.targetDamageSubmit(ctx, in, args)
	case "declaration":
		return b.declaration(ctx, in)
	case "input_damage":
		return b.inputDamage(ctx, in)
	case "damage_modal":
		return b.damageSubmit(ctx, in)
	case "cancel_attack":
		return b.cancelAttack(ctx, in)
	case "new_attack":
		return b.legacyEntry(ctx, in, roster.LegacyNew)
	case "carry_attack":
		return b.legacyEntry(ctx, in, roster.LegacyCarry)
	case "attack_start":
		return b.announceModal(ctx, in, store.TemplateAttackStart)
	case "unfreeze":
		return b.announceModal(ctx, in, store.TemplateUnfreeze)
	case "attack_start_modal":
		return b.announceSubmit(ctx, in, store.TemplateAttackStart)
	case "unfreeze_modal":
		return b.announceSubmit(ctx, in, store.TemplateUnfreeze)
	case "proxy_cancel_attack":
		return b.proxyCancel(ctx, in)
	case "proxy_cancel_attack_select":
		return b.proxyCancelSubmit(ctx, in, args)
	case "attack_finished":
		return b.reportToggle(ctx, in, true)
	case "attack_finished_cancel":
		return b.reportToggle(ctx, in, false)
	}
	return fmt.Errorf("bot: unknown component %q", id)
}

// reply — эфемерный ответ, виден только нажавшему.
func (b *Bot) reply(ctx context.Context, in *discord.Interaction, text string) error {
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{Content: discord.Text(text), Flags: discord.FlagEphemeral},
	})
}

// say — обычный ответ в канал.
func (b *Bot) say(ctx context.Context, in *discord.Interaction, text string) error {
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{Content: discord.Text(text)},
	})
}

func (b *Bot) sayEmbed(ctx context.Context, in *discord.Interaction, e discord.Embed, flags int) error {
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{Embeds: []discord.Embed{e}, Flags: flags},
	})
}

// updateContent заменяет текст сообщения, на котором нажата кнопка.
func (b *Bot) updateContent(ctx context.Context, in *discord.Interaction, text string) error {
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseUpdateMessage,
		Data: &discord.ResponseData{Content: discord.Text(text)},
	})
}

func (b *Bot) modal(ctx context.Context, in *discord.Interaction, customID, title string, inputs ...discord.Component) error {
	rows := make([]discord.Component, len(inputs))
	for i, c := range inputs {
		rows[i] = discord.Row(c)
	}
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseModal,
		Data: &discord.ResponseData{CustomID: customID, Title: clip(title, 45), Components: rows},
	})
}

// clip обрезает строку до n символов (лимиты Discord считаются в символах).
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func author(in *discord.Interaction) *discord.EmbedAuthor {
	a := &discord.EmbedAuthor{Name: in.DisplayName()}
	if u := in.Actor(); u != nil {
		a.IconURL = u.AvatarURL()
	}
	return a
}

func (b *Bot) isAdmin(in *discord.Interaction) bool {
	u := in.Actor()
	return u != nil && b.admins(u.ID)
}
