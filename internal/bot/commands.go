package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EgorLis/clanbattlebot/internal/carryover"
	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/roster"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

const (
	descBossNum   = "ボスの番号"
	descHP        = "ボスの残りHP(万)"
	descDmg       = "ダメージ(万)"
	descLevel     = "通知レベル(0~3) 高いほど通知量が多い"
	descTemplate  = "メッセージのテンプレート"
	descImgURL    = "画像のURL"
	descCarryTime = "持ち越したい時間"
)

func choices(vals ...int) []discord.OptionChoice {
	out := make([]discord.OptionChoice, len(vals))
	for i, v := range vals {
		out[i] = discord.OptionChoice{Name: fmt.Sprint(v), Value: v}
	}
	return out
}

func intOption(name, desc string, required bool, ch ...int) discord.CommandOptionDef {
	return discord.CommandOptionDef{
		Type: discord.OptionInteger, Name: name, Description: desc, Required: required, Choices: choices(ch...),
	}
}

func strOption(name, desc string) discord.CommandOptionDef {
	return discord.CommandOptionDef{Type: discord.OptionString, Name: name, Description: desc, Required: true}
}

// Commands — слэш-команды бота для регистрации в Discord.
func Commands() []discord.ApplicationCommand {
	boss := intOption("boss_num", descBossNum, true, 1, 2, 3, 4, 5)
	bossNumber := intOption("boss_number", descBossNum, true, 1, 2, 3, 4, 5)
	template := []discord.CommandOptionDef{bossNumber, strOption("template", descTemplate), strOption("img_url", descImgURL)}

	return []discord.ApplicationCommand{
		{Name: "concurrent_atk", Description: "同時凸のテンプレートを作成する",
			Options: []discord.CommandOptionDef{boss, intOption("hp", descHP, false)}},
		{Name: "carry_over", Description: "同時凸時の持ち越し時間の算出",
			Options: []discord.CommandOptionDef{
				intOption("hp", descHP, true),
				intOption("dmg1", descDmg, true),
				intOption("dmg2", descDmg, false),
				intOption("dmg3", descDmg, false),
				intOption("dmg4", descDmg, false),
			}},
		{Name: "fullback", Description: "持ち越したい時間に必要なダメージの算出",
			Options: []discord.CommandOptionDef{intOption("hp", descHP, true), intOption("carry_time", descCarryTime, false)}},
		{Name: "notify_concurrent_atk_register", Description: "同時凸の通知を登録する",
			Options: []discord.CommandOptionDef{intOption("level", descLevel, true, 0, 1, 2, 3)}},
		{Name: "notify_concurrent_atk_unregister", Description: "同時凸の通知を登録解除する"},
		{Name: "set_attack_start_template", Description: "凸開始メッセージのテンプレートを設定する", Options: template},
		{Name: "remove_attack_start_template", Description: "凸開始メッセージのテンプレートを削除する",
			Options: []discord.CommandOptionDef{bossNumber}},
		{Name: "set_unfreeze_template", Description: "解凍メッセージのテンプレートを設定する", Options: template},
		{Name: "remove_unfreeze_template", Description: "解凍メッセージのテンプレートを削除する",
			Options: []discord.CommandOptionDef{bossNumber}},
		{Name: "set_boss", Description: "[admin]ボス情報の登録",
			Options: []discord.CommandOptionDef{boss, strOption("name", "ボスの名前"), intOption("hp", "ボスのHP(万)", true)}},
		{Name: "get_bosses", Description: "[admin]ボス情報の参照"},
		{Name: "set_clan_battle_schedule", Description: "[admin]クランバトル開催期間の登録",
			Options: []discord.CommandOptionDef{strOption("start_date", "開始日(yyyy-mm-dd)"), strOption("end_date", "終了日(yyyy-mm-dd)")}},
		{Name: "get_clan_battle_schedule", Description: "[admin]クランバトル開催期間の参照"},
		{Name: "set_clan_role", Description: "[admin]クランメンバーのロールを設定する",
			Options: []discord.CommandOptionDef{{Type: discord.OptionRole, Name: "role", Description: "クランメンバーのロール", Required: true}}},
		{Name: "remove_clan_role", Description: "[admin]クランメンバーのロールの設定を削除する"},
		{Name: "del_message", Description: "botメッセージの削除",
			Options: []discord.CommandOptionDef{strOption("message_id", "メッセージのID")}},
		{Name: "atk_report_make", Description: "凸完了報告表を作成"},
		{Name: "atk_report_auto_register", Description: "凸完了報告表の自動作成を登録する"},
		{Name: "atk_report_auto_unregister", Description: "凸完了報告表の自動作成の登録を解除する"},
	}
}

var adminCommands = map[string]bool{
	"set_boss":                 true,
	"get_bosses":               true,
	"set_clan_battle_schedule": true,
	"get_clan_battle_schedule": true,
	"set_clan_role":            true,
	"remove_clan_role":         true,
}

func (b *Bot) handleCommand(ctx context.Context, in *discord.Interaction) error {
	name := in.Data.Name
	if adminCommands[name] && !b.isAdmin(in) {
		return b.reply(ctx, in, "このコマンドは管理者のみ実行できます。")
	}

	switch name {
	case "concurrent_atk":
		return b.cmdConcurrentAttack(ctx, in)
	case "carry_over":
		return b.cmdCarryOver(ctx, in)
	case "fullback":
		return b.cmdFullback(ctx, in)
	case "notify_concurrent_atk_register":
		return b.cmdNotifyRegister(ctx, in)
	case "notify_concurrent_atk_unregister":
		return b.cmdNotifyUnregister(ctx, in)
	case "set_attack_start_template":
		return b.cmdSetTemplate(ctx, in, store.TemplateAttackStart)
	case "remove_attack_start_template":
		return b.cmdRemoveTemplate(ctx, in, store.TemplateAttackStart)
	case "set_unfreeze_template":
		return b.cmdSetTemplate(ctx, in, store.TemplateUnfreeze)
	case "remove_unfreeze_template":
		return b.cmdRemoveTemplate(ctx, in, store.TemplateUnfreeze)
	case "set_boss":
		return b.cmdSetBoss(ctx, in)
	case "get_bosses":
		return b.cmdGetBosses(ctx, in)
	case "set_clan_battle_schedule":
		return b.cmdSetSchedule(ctx, in)
	case "get_clan_battle_schedule":
		return b.cmdGetSchedule(ctx, in)
	case "set_clan_role":
		return b.cmdSetClanRole(ctx, in)
	case "remove_clan_role":
		return b.cmdRemoveClanRole(ctx, in)
	case "del_message":
		return b.cmdDeleteMessage(ctx, in)
	case "atk_report_make":
		return b.cmdReportMake(ctx, in)
	case "atk_report_auto_register":
		return b.cmdReportRegister(ctx, in)
	case "atk_report_auto_unregister":
		return b.cmdReportUnregister(ctx, in)
	}
	return fmt.Errorf("bot: unknown command %q", name)
}

func optInt(in *discord.Interaction, name string) (int, bool) {
	o, ok := in.Data.Option(name)
	if !ok {
		return 0, false
	}
	return o.Int()
}

func optString(in *discord.Interaction, name string) string {
	o, ok := in.Data.Option(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(o.String())
}

func mustInt(in *discord.Interaction, name string) (int, error) {
	v, ok := optInt(in, name)
	if !ok {
		return 0, fmt.Errorf("bot: option %q is required", name)
	}
	return v, nil
}

func (b *Bot) cmdConcurrentAttack(ctx context.Context, in *discord.Interaction) error {
	n, err := mustInt(in, "boss_num")
	if err != nil {
		return err
	}
	boss, err := b.store.Boss(ctx, n)
	if errors.Is(err, store.ErrNotFound) {
		return b.reply(ctx, in, fmt.Sprintf("%dボス情報が登録されていません。", n))
	}
	if err != nil {
		return fmt.Errorf("bot: load boss: %w", err)
	}
	hp := boss.HP
	if v, ok := optInt(in, "hp"); ok {
		hp = v
	}
	doc := roster.NewDocument(roster.Header{Number: boss.Number, Boss: boss.Name, HP: hp})
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{Content: discord.Text(doc), Components: rosterComponents()},
	})
}

func codeBlock(lines ...string) string {
	return "```c\n" + strings.Join(lines, "\n") + "\n```"
}

func (b *Bot) cmdCarryOver(ctx context.Context, in *discord.Interaction) error {
	hp, err := mustInt(in, "hp")
	if err != nil {
		return err
	}
	var dmgs []int
	for _, name := range []string{"dmg1", "dmg2", "dmg3", "dmg4"} {
		if v, ok := optInt(in, name); ok {
			dmgs = append(dmgs, v)
		}
	}
	if len(dmgs) == 0 {
		return fmt.Errorf("bot: option %q is required", "dmg1")
	}
	for _, d := range dmgs {
		if d <= 0 {
			return b.reply(ctx, in, "ダメージは1以上で入力して下さい。")
		}
	}
	return b.sayEmbed(ctx, in, discord.Embed{
		Title: "持ち越し時間算出",
		Fields: []discord.EmbedField{{
			Name:   fmt.Sprintf("%s:%d", descHP, hp),
			Value:  codeBlock(carryover.Table(hp, dmgs)...),
			Inline: true,
		}},
	}, 0)
}

func (b *Bot) cmdFullback(ctx context.Context, in *discord.Interaction) error {
	hp, err := mustInt(in, "hp")
	if err != nil {
		return err
	}
	ct := carryover.MaxCarryOver
	if v, ok := optInt(in, "carry_time"); ok {
		ct = v
	}
	dmg, err := carryover.Fullback(hp, ct)
	if err != nil {
		return b.reply(ctx, in, "持ち越し時間は110秒以下で入力して下さい。")
	}
	return b.sayEmbed(ctx, in, discord.Embed{
		Title: "必要ダメージ算出",
		Fields: []discord.EmbedField{{
			Name:   fmt.Sprintf("%s:%d", descHP, hp),
			Value:  codeBlock(fmt.Sprintf("持越: %d秒 = %d", ct, dmg)),
			Inline: true,
		}},
	}, 0)
}

func (b *Bot) cmdNotifyRegister(ctx context.Context, in *discord.Interaction) error {
	level, err := mustInt(in, "level")
	if err != nil {
		return err
	}
	if level < store.NotifyOff || level > store.NotifyAll {
		return fmt.Errorf("bot: notify level %d out of range", level)
	}
	if err := b.store.PutNotify(ctx, store.Notify{GuildID: in.GuildID, ChannelID: in.ChannelID, Level: level}); err != nil {
		return fmt.Errorf("bot: save notify: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("このチャンネルに同時凸の通知(level=%d)を登録しました。", level))
}

func (b *Bot) cmdNotifyUnregister(ctx context.Context, in *discord.Interaction) error {
	n, err := b.store.Notify(ctx, in.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		return b.reply(ctx, in, "このサーバーに同時凸の通知は登録されていません。")
	}
	if err != nil {
		return fmt.Errorf("bot: load notify: %w", err)
	}
	if err := b.store.DeleteNotify(ctx, in.GuildID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("bot: delete notify: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("同時凸の通知(channel=<#%s>)を登録解除しました。", n.ChannelID))
}

func templateLabel(kind store.TemplateKind) string {
	if kind == store.TemplateUnfreeze {
		return "解凍メッセージ"
	}
	return "凸開始メッセージ"
}

func (b *Bot) cmdSetTemplate(ctx context.Context, in *discord.Interaction, kind store.TemplateKind) error {
	n, err := mustInt(in, "boss_number")
	if err != nil {
		return err
	}
	t := store.Template{
		GuildID:    in.GuildID,
		Kind:       kind,
		BossNumber: n,
		Text:       optString(in, "template"),
		ImageURL:   optString(in, "img_url"),
	}
	if err := b.store.PutTemplate(ctx, t); err != nil {
		return fmt.Errorf("bot: save template: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("%s(%dボス)のテンプレートの設定をしました。", templateLabel(kind), n))
}

func (b *Bot) cmdRemoveTemplate(ctx context.Context, in *discord.Interaction, kind store.TemplateKind) error {
	n, err := mustInt(in, "boss_number")
	if err != nil {
		return err
	}
	err = b.store.DeleteTemplate(ctx, in.GuildID, kind, n)
	if errors.Is(err, store.ErrNotFound) {
		return b.reply(ctx, in, fmt.Sprintf("%s(%dボス)のテンプレートの設定がされていません。", templateLabel(kind), n))
	}
	if err != nil {
		return fmt.Errorf("bot: delete template: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("%s(%dボス)のテンプレートの設定を削除しました。", templateLabel(kind), n))
}

func (b *Bot) cmdSetBoss(ctx context.Context, in *discord.Interaction) error {
	n, err := mustInt(in, "boss_num")
	if err != nil {
		return err
	}
	hp, err := mustInt(in, "hp")
	if err != nil {
		return err
	}
	boss := store.Boss{Number: n, Name: optString(in, "name"), HP: hp}
	if boss.Name == "" || hp <= 0 {
		return b.reply(ctx, in, "ボス情報の登録に失敗しました。")
	}
	if err := b.store.PutBoss(ctx, boss); err != nil {
		return fmt.Errorf("bot: save boss: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("ボス登録完了 番号:%d, 名前:%s, HP:%d", boss.Number, boss.Name, boss.HP))
}

func (b *Bot) cmdGetBosses(ctx context.Context, in *discord.Interaction) error {
	bosses, err := b.store.Bosses(ctx)
	if err != nil {
		return fmt.Errorf("bot: list bosses: %w", err)
	}
	e := discord.Embed{Title: "ボス情報一覧"}
	for _, boss := range bosses {
		e.Fields = append(e.Fields, discord.EmbedField{
			Name:  fmt.Sprintf("%dボス", boss.Number),
			Value: fmt.Sprintf("名前:%s, HP:%d(万)", boss.Name, boss.HP),
		})
	}
	return b.sayEmbed(ctx, in, e, discord.FlagEphemeral)
}

func (b *Bot) cmdSetSchedule(ctx context.Context, in *discord.Interaction) error {
	start, err1 := store.ParseDate(optString(in, "start_date"))
	end, err2 := store.ParseDate(optString(in, "end_date"))
	if err := errors.Join(err1, err2); err != nil || end.Before(start) {
		return b.reply(ctx, in, "クランバトル開催期間の登録に失敗しました。")
	}
	if err := b.store.PutSchedule(ctx, store.Schedule{Start: start, End: end}); err != nil {
		return fmt.Errorf("bot: save schedule: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("クランバトル開催期間登録完了 開始日:%s, 終了日:%s",
		start.Format(store.DateLayout), end.Format(store.DateLayout)))
}

func (b *Bot) cmdGetSchedule(ctx context.Context, in *discord.Interaction) error {
	e := discord.Embed{Title: "クランバトル開催期間"}
	sc, err := b.store.Schedule(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.Footer = &discord.EmbedFooter{Text: "Not Found"}
	case err != nil:
		return fmt.Errorf("bot: load schedule: %w", err)
	default:
		e.Fields = []discord.EmbedField{
			{Name: "開始日", Value: sc.Start.Format(store.DateLayout), Inline: true},
			{Name: "終了日", Value: sc.End.Format(store.DateLayout), Inline: true},
		}
	}
	return b.sayEmbed(ctx, in, e, discord.FlagEphemeral)
}

func (b *Bot) cmdSetClanRole(ctx context.Context, in *discord.Interaction) error {
	role := optString(in, "role")
	if role == "" {
		return fmt.Errorf("bot: option %q is required", "role")
	}
	if err := b.store.PutClanRole(ctx, store.ClanRole{GuildID: in.GuildID, RoleID: role}); err != nil {
		return fmt.Errorf("bot: save clan role: %w", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("クランメンバーのロール(<@&%s>)を設定しました。", role))
}

func (b *Bot) cmdRemoveClanRole(ctx context.Context, in *discord.Interaction) error {
	err := b.store.DeleteClanRole(ctx, in.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		return b.reply(ctx, in, "クランメンバーのロールは設定されていません。")
	}
	if err != nil {
		return fmt.Errorf("bot: delete clan role: %w", err)
	}
	return b.reply(ctx, in, "クランメンバーのロールの設定を削除しました。")
}

// cmdDeleteMessage удаляет сообщение бота в текущем канале.
func (b *Bot) cmdDeleteMessage(ctx context.Context, in *discord.Interaction) error {
	id := optString(in, "message_id")
	msg, err := b.platform.ChannelMessage(ctx, in.ChannelID, id)
	if discord.IsNotFound(err) {
		return b.reply(ctx, in, fmt.Sprintf("対象メッセージ(ID:%s)が見つかりませんでした。", id))
	}
	if err != nil {
		return fmt.Errorf("bot: fetch message: %w", err)
	}
	if msg.Author == nil || msg.Author.ID != b.appID {
		return b.reply(ctx, in, fmt.Sprintf("対象メッセージ(ID:%s)はbotメッセージではありません。", id))
	}
	if err := b.platform.DeleteMessage(ctx, in.ChannelID, id); err != nil && !discord.IsNotFound(err) {
		return fmt.Errorf("bot: delete message: %w", err)
	}
	if err := b.rosters.Forget(ctx, id); err != nil {
		b.logger(ctx).Warn("forget roster", "message_id", id, "err", err)
	}
	return b.reply(ctx, in, fmt.Sprintf("対象メッセージ(ID:%s)を削除しました。", id))
}
