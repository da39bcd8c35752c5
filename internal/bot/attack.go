package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/doccache"
	"github.com/EgorLis/clanbattlebot/internal/roster"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

const (
	msgNoEntry     = "対象凸がありません。"
	msgNoHeader    = "ボス情報を読み取れませんでした。"
	msgBadTarget   = "ダメージは0以上の整数で入力して下さい。"
	msgBadName     = "この名前では凸を登録できません。ニックネームを変更して下さい。"
	msgEmptyNote   = "ダメージを入力して下さい。"
	msgProxyPrompt = "キャンセルする凸のユーザーを選択して下さい(複数可)"
	msgProxyDone   = "下記ユーザーの凸をキャンセルしました。"
)

var errNoMessage = errors.New("bot: interaction without message")

var kindLabels = map[roster.Kind]struct{ label, emoji string }{
	roster.NewPhysical:   {"新凸 物理", "\U0001F5E1\uFE0F"},
	roster.NewMagic:      {"新凸 魔法", "\u2721\uFE0F"},
	roster.CarryPhysical: {"持越 物理", "\U0001F5E1\uFE0F"},
	roster.CarryMagic:    {"持越 魔法", "\u2721\uFE0F"},
}

func button(customID, label, emoji string, style int) discord.Component {
	return discord.Component{
		Type:     discord.ComponentButton,
		CustomID: customID,
		Label:    label,
		Style:    style,
		Emoji:    &discord.Emoji{Name: emoji},
	}
}

// rosterComponents — панель под ростером.
func rosterComponents() []discord.Component {
	opts := make([]discord.SelectOption, 0, len(roster.Targeted.Kinds))
	for _, k := range roster.Targeted.Kinds {
		l := kindLabels[k]
		opts = append(opts, discord.SelectOption{Label: l.label, Value: string(k), Emoji: &discord.Emoji{Name: l.emoji}})
	}
	return []discord.Component{
		discord.Row(discord.Component{
			Type:        discord.ComponentStringMenu,
			CustomID:    "attack_select",
			Placeholder: "凸内容を選択",
			Options:     opts,
		}),
		discord.Row(
			button("declaration", "本戦", "\u2708\uFE0F", discord.ButtonPrimary),
			button("input_damage", "ダメ入力", "\U0001F4DD", discord.ButtonPrimary),
			button("cancel_attack", "取消", "\U0001F6AE", discord.ButtonDanger),
		),
		discord.Row(
			button("attack_start", "同凸開始", "\U0001F4E2", discord.ButtonSuccess),
			button("unfreeze", "解凍", "\U0001F525", discord.ButtonSuccess),
			button("proxy_cancel_attack", "代消", "\u2622\uFE0F", discord.ButtonSecondary),
		),
	}
}

// current — актуальный текст ростера: из кэша, если он там есть,
// иначе то, что показывает Discord.
func (b *Bot) current(ctx context.Context, msg *discord.Message) (string, error) {
	text, ok, err := b.rosters.Peek(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return text, nil
	}
	return msg.Content, nil
}

// body — строки ростера после заголовка и разделителя.
func body(text string) []string {
	lines := doccache.SplitLines(text)
	if len(lines) <= doccache.DefaultHeaderLines {
		return nil
	}
	return lines[doccache.DefaultHeaderLines:]
}

func header(text string) (roster.Header, bool) {
	lines := doccache.SplitLines(text)
	if len(lines) == 0 {
		return roster.Header{}, false
	}
	return roster.ParseHeader(lines[0])
}

// schemeOf определяет формат ростера по первой разобранной записи.
// Старые сообщения с кнопками new_attack/carry_attack пишутся как "имя(新凸)".
func schemeOf(lines []string) roster.Scheme {
	for _, l := range lines {
		if _, ok := roster.Targeted.Decode(l); ok {
			return roster.Targeted
		}
		if _, ok := roster.Legacy.Decode(l); ok {
			return roster.Legacy
		}
	}
	return roster.Targeted
}

func bossLabel(text string) string {
	if h, ok := header(text); ok {
		return h.BossLabel()
	}
	return "error"
}

// attackSelect открывает модалку целевого урона для выбранного вида.
func (b *Bot) attackSelect(ctx context.Context, in *discord.Interaction) error {
	if len(in.Data.Values) == 0 {
		return fmt.Errorf("bot: attack_select without value")
	}
	kind := roster.Kind(in.Data.Values[0])
	idx := -1
	for i, k := range roster.Targeted.Kinds {
		if k == kind {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("bot: %w: %q", roster.ErrUnknownKind, kind)
	}
	return b.modal(ctx, in, "target_damage:"+strconv.Itoa(idx),
		strings.TrimSpace(string(kind))+" 目標ダメージ入力",
		discord.Component{
			Type:        discord.ComponentTextInput,
			CustomID:    "target",
			Style:       discord.TextInputShort,
			Label:       "ダメージ(万)",
			Placeholder: "1234",
		})
}

func (b *Bot) targetDamageSubmit(ctx context.Context, in *discord.Interaction, arg string) error {
	if in.Message == nil {
		return errNoMessage
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(roster.Targeted.Kinds) {
		return fmt.Errorf("bot: bad target modal %q", arg)
	}
	kind := roster.Targeted.Kinds[idx]

	raw := width.Narrow.String(strings.TrimSpace(in.Data.TextValue("target")))
	target, err := strconv.Atoi(raw)
	if err != nil || target < 0 {
		return b.reply(ctx, in, msgBadTarget)
	}

	name := in.DisplayName()
	text, err := b.rosters.Apply(ctx, in.Message.ID, in.Message.Content, func(lines []string) ([]string, error) {
		return roster.Targeted.SetEntry(lines, name, kind, target)
	})
	if errors.Is(err, roster.ErrBadName) {
		return b.reply(ctx, in, msgBadName)
	}
	if err != nil {
		return fmt.Errorf("bot: register attack: %w", err)
	}
	if err := b.updateContent(ctx, in, text); err != nil {
		return err
	}
	b.notifyRoster(ctx, in, text, discord.Embed{
		Title: fmt.Sprintf("%s %sで登録しました。", bossLabel(text), kind),
	})
	return nil
}

// legacyEntry — кнопки new_attack/carry_attack старых ростеров без
// целевого урона: запись "имя(新凸)" или "имя(持越)" в конец.
func (b *Bot) legacyEntry(ctx context.Context, in *discord.Interaction, kind roster.Kind) error {
	if in.Message == nil {
		return errNoMessage
	}
	name := in.DisplayName()
	text, err := b.rosters.Apply(ctx, in.Message.ID, in.Message.Content, func(lines []string) ([]string, error) {
		return roster.Legacy.SetEntry(lines, name, kind, 0)
	})
	if errors.Is(err, roster.ErrBadName) {
		return b.reply(ctx, in, msgBadName)
	}
	if err != nil {
		return fmt.Errorf("bot: register legacy attack: %w", err)
	}
	if err := b.updateContent(ctx, in, text); err != nil {
		return err
	}
	b.notifyRoster(ctx, in, text, discord.Embed{
		Title: fmt.Sprintf("%s %sで登録しました。", bossLabel(text), kind),
	})
	return nil
}

// declaration переключает отметку 本戦.
func (b *Bot) declaration(ctx context.Context, in *discord.Interaction) error {
	if in.Message == nil {
		return errNoMessage
	}
	name := in.DisplayName()
	text, err := b.rosters.Apply(ctx, in.Message.ID, in.Message.Content, func(lines []string) ([]string, error) {
		return roster.Targeted.ToggleState(lines, name, roster.StageDeclared, roster.StageInBattle)
	})
	if errors.Is(err, roster.ErrNoEntry) {
		return b.reply(ctx, in, msgNoEntry)
	}
	if err != nil {
		return fmt.Errorf("bot: toggle battle: %w", err)
	}
	return b.updateContent(ctx, in, text)
}

func (b *Bot) inputDamage(ctx context.Context, in *discord.Interaction) error {
	if in.Message == nil {
		return errNoMessage
	}
	text, err := b.current(ctx, in.Message)
	if err != nil {
		return err
	}
	e, ok := roster.Targeted.Find(body(text), in.DisplayName())
	if !ok {
		return b.reply(ctx, in, msgNoEntry)
	}
	return b.modal(ctx, in, "damage_modal", "ダメージ入力", discord.Component{
		Type:        discord.ComponentTextInput,
		CustomID:    "damage",
		Style:       discord.TextInputShort,
		Label:       clip(roster.Targeted.Encode(e), 45),
		Placeholder: "ダメージを入力して下さい",
	})
}

func (b *Bot) damageSubmit(ctx context.Context, in *discord.Interaction) error {
	if in.Message == nil {
		return errNoMessage
	}
	name := in.DisplayName()
	note := strings.TrimSpace(in.Data.TextValue("damage"))
	if note == "" {
		return b.reply(ctx, in, msgEmptyNote)
	}
	text, err := b.rosters.Apply(ctx, in.Message.ID, in.Message.Content, func(lines []string) ([]string, error) {
		return roster.Targeted.Annotate(lines, name, note)
	})
	if errors.Is(err, roster.ErrNoEntry) {
		// запись успели отменить, пока была открыта модалка
		return b.reply(ctx, in, msgNoEntry)
	}
	if err != nil {
		return fmt.Errorf("bot: annotate: %w", err)
	}
	if err := b.updateContent(ctx, in, text); err != nil {
		return err
	}

	value := name + " : " + note
	if e, ok := roster.Targeted.Find(body(text), name); ok {
		value = fmt.Sprintf("%s  %s : %s", e.Kind, name, note)
	}
	b.notifyRoster(ctx, in, text, discord.Embed{
		Title:  "ダメージ入力しました。",
		Fields: []discord.EmbedField{{Name: bossLabel(text), Value: value}},
	})
	return nil
}

func (b *Bot) cancelAttack(ctx context.Context, in *discord.Interaction) error {
	if in.Message == nil {
		return errNoMessage
	}
	name := in.DisplayName()
	var had bool
	text, err := b.rosters.Apply(ctx, in.Message.ID, in.Message.Content, func(lines []string) ([]string, error) {
		sc := schemeOf(lines)
		_, had = sc.Find(lines, name)
		return sc.SetEntry(lines, name, roster.Cancel, 0)
	})
	if err != nil {
		return fmt.Errorf("bot: cancel attack: %w", err)
	}
	if err := b.updateContent(ctx, in, text); err != nil {
		return err
	}
	if had {
		b.notifyRoster(ctx, in, text, discord.Embed{
			Title: fmt.Sprintf("%s キャンセルしました。", bossLabel(text)),
		})
	}
	return nil
}

// proxyCancel показывает нажавшему список участников для отмены чужих записей.
func (b *Bot) proxyCancel(ctx context.Context, in *discord.Interaction) error {
	if in.Message == nil {
		return errNoMessage
	}
	text, err := b.current(ctx, in.Message)
	if err != nil {
		return err
	}
	names := schemeOf(body(text)).Participants(body(text))
	if len(names) == 0 {
		return b.platform.Respond(ctx, in, discord.InteractionResponse{Type: discord.ResponseDeferredUpdateMsg})
	}
	if len(names) > 25 {
		names = names[:25]
	}

	opts := make([]discord.SelectOption, len(names))
	for i, n := range names {
		opts[i] = discord.SelectOption{Label: clip(n, 100), Value: n}
	}
	zero := 0
	sel := discord.Component{
		Type:        discord.ComponentStringMenu,
		CustomID:    "proxy_cancel_attack_select:" + in.Message.ChannelID + ":" + in.Message.ID,
		Placeholder: "キャンセルするユーザー",
		Options:     opts,
		MinValues:   &zero,
		MaxValues:   len(opts),
	}
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Content:    discord.Text(msgProxyPrompt),
			Components: []discord.Component{discord.Row(sel)},
			Flags:      discord.FlagEphemeral,
		},
	})
}

// proxyCancelSubmit снимает записи выбранных участников одной транзакцией
// над ростером и правит исходное сообщение.
func (b *Bot) proxyCancelSubmit(ctx context.Context, in *discord.Interaction, args string) error {
	channelID, messageID, ok := strings.Cut(args, ":")
	if !ok || channelID == "" || messageID == "" {
		return fmt.Errorf("bot: bad proxy cancel target %q", args)
	}
	msg, err := b.platform.ChannelMessage(ctx, channelID, messageID)
	if err != nil {
		return fmt.Errorf("bot: fetch roster: %w", err)
	}

	names := in.Data.Values
	text, err := b.rosters.Apply(ctx, messageID, msg.Content, func(lines []string) ([]string, error) {
		var err error
		sc := schemeOf(lines)
		for _, n := range names {
			if lines, err = sc.SetEntry(lines, n, roster.Cancel, 0); err != nil {
				return nil, err
			}
		}
		return lines, nil
	})
	if err != nil {
		return fmt.Errorf("bot: proxy cancel: %w", err)
	}
	if _, err := b.platform.EditMessage(ctx, channelID, messageID, discord.MessageEdit{Content: discord.Text(text)}); err != nil {
		return fmt.Errorf("bot: edit roster: %w", err)
	}
	return b.reply(ctx, in, msgProxyDone+"\n"+strings.Join(names, "\n"))
}

func announceTitle(kind store.TemplateKind, h roster.Header) string {
	if kind == store.TemplateUnfreeze {
		return fmt.Sprintf("%dボス %s 解凍", h.Number, h.Boss)
	}
	return fmt.Sprintf("%dボス %s 同時凸開始", h.Number, h.Boss)
}

// announceModal открывает модалку объявления, заполненную шаблоном гильдии.
func (b *Bot) announceModal(ctx context.Context, in *discord.Interaction, kind store.TemplateKind) error {
	if in.Message == nil {
		return errNoMessage
	}
	text, err := b.current(ctx, in.Message)
	if err != nil {
		return err
	}
	h, ok := header(text)
	if !ok {
		return b.reply(ctx, in, msgNoHeader)
	}

	var msg, img string
	t, err := b.store.Template(ctx, in.GuildID, kind, h.Number)
	switch {
	case err == nil:
		msg, img = substitute(t.Text, map[string]string{
			"boss_number": strconv.Itoa(h.Number),
			"boss_name":   h.Boss,
		}), t.ImageURL
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("bot: load template: %w", err)
	}

	label := "開始メッセージ"
	if kind == store.TemplateUnfreeze {
		label = "解凍メッセージ"
	}
	optional := false
	return b.modal(ctx, in, string(kind)+"_modal", announceTitle(kind, h),
		discord.Component{
			Type:     discord.ComponentTextInput,
			CustomID: "message",
			Style:    discord.TextInputParagraph,
			Label:    label,
			Value:    msg,
			Required: &optional,
		},
		discord.Component{
			Type:     discord.ComponentTextInput,
			CustomID: "image_url",
			Style:    discord.TextInputShort,
			Label:    "画像URL",
			Value:    img,
			Required: &optional,
		})
}

// announceSubmit публикует объявление с упоминанием участников ростера:
// в канал уведомлений, если он зарегистрирован, иначе ответом на месте.
func (b *Bot) announceSubmit(ctx context.Context, in *discord.Interaction, kind store.TemplateKind) error {
	if in.Message == nil {
		return errNoMessage
	}
	text, err := b.current(ctx, in.Message)
	if err != nil {
		return err
	}
	h, ok := header(text)
	if !ok {
		return b.reply(ctx, in, msgNoHeader)
	}

	e := discord.Embed{
		Title:       announceTitle(kind, h),
		Description: in.Data.TextValue("message"),
		Author:      author(in),
	}
	if img := strings.TrimSpace(in.Data.TextValue("image_url")); img != "" {
		e.Image = &discord.EmbedImage{URL: img}
	}
	names := schemeOf(body(text)).Participants(body(text))

	n, err := b.store.Notify(ctx, in.GuildID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bot: load notify: %w", err)
	}
	if err == nil {
		if err := b.platform.Respond(ctx, in, discord.InteractionResponse{Type: discord.ResponseDeferredUpdateMsg}); err != nil {
			return err
		}
		if n.Level < store.NotifyAnnounce {
			return nil
		}
		_, err := b.platform.CreateMessage(ctx, n.ChannelID, discord.MessageSend{
			Content: b.mentions(ctx, in.GuildID, names),
			Embeds:  []discord.Embed{e},
		})
		if err != nil {
			return fmt.Errorf("bot: post announcement: %w", err)
		}
		return nil
	}

	// поиск участников дольше трёх секунд ответа, поэтому сначала defer
	if err := b.platform.Respond(ctx, in, discord.InteractionResponse{Type: discord.ResponseDeferredChannelMsg}); err != nil {
		return err
	}
	_, err = b.platform.EditOriginal(ctx, in.Token, discord.MessageEdit{
		Content: discord.Text(b.mentions(ctx, in.GuildID, names)),
		Embeds:  &[]discord.Embed{e},
	})
	if err != nil {
		return fmt.Errorf("bot: post announcement: %w", err)
	}
	return nil
}
