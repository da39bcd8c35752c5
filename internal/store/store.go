// Package store описывает долговременные настройки бота: боссы, период
// клан-батла, каналы уведомлений, шаблоны сообщений и автоотчёты.
// Сами ростеры здесь не хранятся: их состояние живёт в тексте сообщений.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound — записи нет.
var ErrNotFound = errors.New("store: not found")

// Boss — босс текущего клан-батла. HP в 万.
type Boss struct {
	Number int
	Name   string
	HP     int
}

// Schedule — даты клан-батла включительно, часовой пояс Asia/Tokyo.
type Schedule struct {
	Start time.Time
	End   time.Time
}

// Day возвращает номер дня клан-батла (с 1) для даты d.
func (s Schedule) Day(d time.Time) (int, bool) {
	d = dateOnly(d)
	start, end := dateOnly(s.Start), dateOnly(s.End)
	if d.Before(start) || d.After(end) {
		return 0, false
	}
	return int(d.Sub(start).Hours()/24) + 1, true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Уровни уведомлений об одновременных атаках.
const (
	NotifyOff      = 0
	NotifyAnnounce = 1 // объявления о старте и разморозке
	NotifyAll      = 3 // плюс регистрация, отмена и урон
)

// Notify — канал уведомлений гильдии.
type Notify struct {
	GuildID   string
	ChannelID string
	Level     int
}

// TemplateKind — тип шаблона объявления.
type TemplateKind string

const (
	TemplateAttackStart TemplateKind = "attack_start"
	TemplateUnfreeze    TemplateKind = "unfreeze"
)

// Template — шаблон объявления для босса. В тексте допустимы
// $boss_number и $boss_name.
type Template struct {
	GuildID    string
	Kind       TemplateKind
	BossNumber int
	Text       string
	ImageURL   string
}

// ReportRegister — канал с ежедневным отчётом о завершённых атаках.
type ReportRegister struct {
	GuildID       string
	ChannelID     string
	LastPublished time.Time
}

// ClanRole — роль участников клана в гильдии.
type ClanRole struct {
	GuildID string
	RoleID  string
}

type Store interface {
	Boss(ctx context.Context, number int) (Boss, error)
	Bosses(ctx context.Context) ([]Boss, error)
	PutBoss(ctx context.Context, b Boss) error

	Schedule(ctx context.Context) (Schedule, error)
	PutSchedule(ctx context.Context, s Schedule) error

	Notify(ctx context.Context, guildID string) (Notify, error)
	PutNotify(ctx context.Context, n Notify) error
	DeleteNotify(ctx context.Context, guildID string) error

	Template(ctx context.Context, guildID string, kind TemplateKind, boss int) (Template, error)
	PutTemplate(ctx context.Context, t Template) error
	DeleteTemplate(ctx context.Context, guildID string, kind TemplateKind, boss int) error

	ReportRegisters(ctx context.Context) ([]ReportRegister, error)
	// AddReportRegister добавляет канал; false, если он уже был.
	AddReportRegister(ctx context.Context, r ReportRegister) (bool, error)
	TouchReportRegister(ctx context.Context, guildID, channelID string, published time.Time) error
	DeleteReportRegister(ctx context.Context, guildID, channelID string) error

	ClanRole(ctx context.Context, guildID string) (ClanRole, error)
	PutClanRole(ctx context.Context, r ClanRole) error
	DeleteClanRole(ctx context.Context, guildID string) error

	Close() error
}

// DateLayout — формат дат в хранилище и в командах.
const DateLayout = "2006-01-02"

// ParseDate разбирает дату "yyyy-mm-dd".
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
