package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/doccache"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

const (
	reportTitle = "凸完了報告"
	reportField = "3凸完了"
	reportCount = "凸完人数"
	reportHead  = "-----"
)

// reportEmbed строит отчёт по значению поля "3凸完了": первая строка
// "-----", дальше по имени на строку.
func reportEmbed(value string) discord.Embed {
	n := len(doccache.SplitLines(value)) - 1
	if n < 0 {
		n = 0
	}
	return discord.Embed{
		Title: reportTitle,
		Fields: []discord.EmbedField{
			{Name: reportField, Value: value, Inline: true},
			{Name: reportCount, Value: strconv.Itoa(n), Inline: true},
		},
	}
}

func reportComponents() []discord.Component {
	return []discord.Component{discord.Row(
		discord.Component{Type: discord.ComponentButton, CustomID: "attack_finished", Label: "3凸完了", Style: discord.ButtonPrimary},
		discord.Component{Type: discord.ComponentButton, CustomID: "attack_finished_cancel", Label: "キャンセル", Style: discord.ButtonDanger},
	)}
}

// reportToggle добавляет (add) или убирает нажавшего из отчёта.
func (b *Bot) reportToggle(ctx context.Context, in *discord.Interaction, add bool) error {
	if in.Message == nil || len(in.Message.Embeds) == 0 {
		return b.reply(ctx, in, "error")
	}
	f, ok := in.Message.Embeds[0].Field(reportField)
	if !ok {
		return b.reply(ctx, in, "error")
	}

	name := in.DisplayName()
	value, err := b.reports.Apply(ctx, in.Message.ID, f.Value, func(lines []string) ([]string, error) {
		i := slices.Index(lines, name)
		switch {
		case add && i < 0:
			return append(lines, name), nil
		case !add && i >= 0:
			return slices.Delete(lines, i, i+1), nil
		}
		return lines, nil
	})
	if err != nil {
		return fmt.Errorf("bot: update report: %w", err)
	}
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseUpdateMessage,
		Data: &discord.ResponseData{Embeds: []discord.Embed{reportEmbed(value)}},
	})
}

func (b *Bot) cmdReportMake(ctx context.Context, in *discord.Interaction) error {
	return b.platform.Respond(ctx, in, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Embeds:     []discord.Embed{reportEmbed(reportHead)},
			Components: reportComponents(),
		},
	})
}

// до первого запуска считаем, что отчёт давно не публиковался
var neverPublished = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func (b *Bot) cmdReportRegister(ctx context.Context, in *discord.Interaction) error {
	added, err := b.store.AddReportRegister(ctx, store.ReportRegister{
		GuildID:       in.GuildID,
		ChannelID:     in.ChannelID,
		LastPublished: neverPublished,
	})
	if err != nil {
		return fmt.Errorf("bot: add report register: %w", err)
	}
	if !added {
		return b.reply(ctx, in, "このチャンネルに凸完了報告表の自動作成は既に登録されています")
	}
	return b.say(ctx, in, "このチャンネルに凸完了報告表の自動作成を登録しました")
}

func (b *Bot) cmdReportUnregister(ctx context.Context, in *discord.Interaction) error {
	err := b.store.DeleteReportRegister(ctx, in.GuildID, in.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return b.reply(ctx, in, "このチャンネルに凸完了報告表の自動作成は登録されていません")
	}
	if err != nil {
		return fmt.Errorf("bot: delete report register: %w", err)
	}
	return b.say(ctx, in, "このチャンネルに登録されていた凸完了報告表の自動作成を解除しました")
}

// RunReports живёт до отмены ctx: раз в минуту проверяет, наступил ли час
// отчётов, и выкладывает отчёты дня туда, где их ещё нет.
func (b *Bot) RunReports(ctx context.Context) error {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	for {
		b.checkReports(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (b *Bot) checkReports(ctx context.Context) {
	now := b.now().In(b.reportLoc)
	if now.Hour() < b.reportHour {
		return
	}
	n, err := b.PublishReports(ctx, now)
	if err != nil {
		b.log.Error("publish reports", "err", err)
		return
	}
	if n > 0 {
		b.log.Info("reports published", "count", n)
	}
}

// PublishReports выкладывает "{день}日目" в каждый канал, где сегодня отчёта
// ещё не было. Каналы, которых больше нет, снимаются с регистрации.
// Возвращает число опубликованных отчётов.
func (b *Bot) PublishReports(ctx context.Context, now time.Time) (int, error) {
	sc, err := b.store.Schedule(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bot: load schedule: %w", err)
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	day, ok := sc.Day(today)
	if !ok {
		return 0, nil
	}

	regs, err := b.store.ReportRegisters(ctx)
	if err != nil {
		return 0, fmt.Errorf("bot: list report registers: %w", err)
	}

	sent := 0
	for _, r := range regs {
		if !r.LastPublished.Before(today) {
			continue
		}
		log := b.log.With("guild_id", r.GuildID, "channel_id", r.ChannelID)
		_, err := b.platform.CreateMessage(ctx, r.ChannelID, discord.MessageSend{
			Content:    fmt.Sprintf("%d日目", day),
			Embeds:     []discord.Embed{reportEmbed(reportHead)},
			Components: reportComponents(),
		})
		switch {
		case discord.IsNotFound(err):
			log.Info("remove report register, channel is gone")
			if err := b.store.DeleteReportRegister(ctx, r.GuildID, r.ChannelID); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Error("remove report register", "err", err)
			}
		case err != nil:
			log.Error("create report", "err", err)
		default:
			sent++
			if err := b.store.TouchReportRegister(ctx, r.GuildID, r.ChannelID, today); err != nil {
				log.Error("touch report register", "err", err)
			}
		}
	}
	return sent, nil
}
