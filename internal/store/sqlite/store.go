// Package sqlite — хранилище настроек на SQLite (modernc.org/sqlite, без cgo).
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EgorLis/clanbattlebot/internal/store"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open открывает базу по пути и создаёт таблицы.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Boss(ctx context.Context, number int) (store.Boss, error) {
	b := store.Boss{Number: number}
	err := s.db.QueryRowContext(ctx, `SELECT name, hp FROM boss_info WHERE number = ?`, number).Scan(&b.Name, &b.HP)
	if err != nil {
		return store.Boss{}, fmt.Errorf("get boss %d: %w", number, notFound(err))
	}
	return b, nil
}

func (s *Store) Bosses(ctx context.Context) ([]store.Boss, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, name, hp FROM boss_info ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bosses: %w", err)
	}
	defer rows.Close()

	var out []store.Boss
	for rows.Next() {
		var b store.Boss
		if err := rows.Scan(&b.Number, &b.Name, &b.HP); err != nil {
			return nil, fmt.Errorf("scan boss: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) PutBoss(ctx context.Context, b store.Boss) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO boss_info (number, name, hp) VALUES (?, ?, ?)
ON CONFLICT (number) DO UPDATE SET name = excluded.name, hp = excluded.hp
`, b.Number, b.Name, b.HP)
	if err != nil {
		return fmt.Errorf("put boss %d: %w", b.Number, err)
	}
	return nil
}

func (s *Store) Schedule(ctx context.Context) (store.Schedule, error) {
	var start, end string
	err := s.db.QueryRowContext(ctx, `SELECT start_date, end_date FROM clan_battle_schedule WHERE id = 1`).Scan(&start, &end)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("get schedule: %w", notFound(err))
	}
	var sc store.Schedule
	if sc.Start, err = store.ParseDate(start); err != nil {
		return store.Schedule{}, fmt.Errorf("parse start date: %w", err)
	}
	if sc.End, err = store.ParseDate(end); err != nil {
		return store.Schedule{}, fmt.Errorf("parse end date: %w", err)
	}
	return sc, nil
}

func (s *Store) PutSchedule(ctx context.Context, sc store.Schedule) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO clan_battle_schedule (id, start_date, end_date) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET start_date = excluded.start_date, end_date = excluded.end_date
`, sc.Start.Format(store.DateLayout), sc.End.Format(store.DateLayout))
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

func (s *Store) Notify(ctx context.Context, guildID string) (store.Notify, error) {
	n := store.Notify{GuildID: guildID}
	err := s.db.QueryRowContext(ctx, `SELECT channel_id, level FROM concurrent_attack_notify WHERE guild_id = ?`, guildID).
		Scan(&n.ChannelID, &n.Level)
	if err != nil {
		return store.Notify{}, fmt.Errorf("get notify %s: %w", guildID, notFound(err))
	}
	return n, nil
}

func (s *Store) PutNotify(ctx context.Context, n store.Notify) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO concurrent_attack_notify (guild_id, channel_id, level) VALUES (?, ?, ?)
ON CONFLICT (guild_id) DO UPDATE SET channel_id = excluded.channel_id, level = excluded.level
`, n.GuildID, n.ChannelID, n.Level)
	if err != nil {
		return fmt.Errorf("put notify %s: %w", n.GuildID, err)
	}
	return nil
}

func (s *Store) DeleteNotify(ctx context.Context, guildID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM concurrent_attack_notify WHERE guild_id = ?`, guildID)
	if err != nil {
		return fmt.Errorf("delete notify %s: %w", guildID, err)
	}
	return affected(res)
}

func (s *Store) Template(ctx context.Context, guildID string, kind store.TemplateKind, boss int) (store.Template, error) {
	t := store.Template{GuildID: guildID, Kind: kind, BossNumber: boss}
	err := s.db.QueryRowContext(ctx, `
SELECT template, image_url FROM message_template
WHERE guild_id = ? AND kind = ? AND boss_number = ?
`, guildID, string(kind), boss).Scan(&t.Text, &t.ImageURL)
	if err != nil {
		return store.Template{}, fmt.Errorf("get template %s/%d: %w", kind, boss, notFound(err))
	}
	return t, nil
}

func (s *Store) PutTemplate(ctx context.Context, t store.Template) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO message_template (guild_id, kind, boss_number, template, image_url) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (guild_id, kind, boss_number) DO UPDATE SET template = excluded.template, image_url = excluded.image_url
`, t.GuildID, string(t.Kind), t.BossNumber, t.Text, t.ImageURL)
	if err != nil {
		return fmt.Errorf("put template %s/%d: %w", t.Kind, t.BossNumber, err)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, guildID string, kind store.TemplateKind, boss int) error {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM message_template WHERE guild_id = ? AND kind = ? AND boss_number = ?
`, guildID, string(kind), boss)
	if err != nil {
		return fmt.Errorf("delete template %s/%d: %w", kind, boss, err)
	}
	return affected(res)
}

func (s *Store) ReportRegisters(ctx context.Context) ([]store.ReportRegister, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT guild_id, channel_id, last_published FROM attack_report_register ORDER BY guild_id, channel_id
`)
	if err != nil {
		return nil, fmt.Errorf("list report registers: %w", err)
	}
	defer rows.Close()

	var out []store.ReportRegister
	for rows.Next() {
		var (
			r    store.ReportRegister
			last string
		)
		if err := rows.Scan(&r.GuildID, &r.ChannelID, &last); err != nil {
			return nil, fmt.Errorf("scan report register: %w", err)
		}
		if r.LastPublished, err = store.ParseDate(last); err != nil {
			return nil, fmt.Errorf("parse last published: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) AddReportRegister(ctx context.Context, r store.ReportRegister) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO attack_report_register (guild_id, channel_id, last_published) VALUES (?, ?, ?)
ON CONFLICT (guild_id, channel_id) DO NOTHING
`, r.GuildID, r.ChannelID, r.LastPublished.Format(store.DateLayout))
	if err != nil {
		return false, fmt.Errorf("add report register: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TouchReportRegister(ctx context.Context, guildID, channelID string, published time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE attack_report_register SET last_published = ? WHERE guild_id = ? AND channel_id = ?
`, published.Format(store.DateLayout), guildID, channelID)
	if err != nil {
		return fmt.Errorf("touch report register: %w", err)
	}
	return affected(res)
}

func (s *Store) DeleteReportRegister(ctx context.Context, guildID, channelID string) error {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM attack_report_register WHERE guild_id = ? AND channel_id = ?
`, guildID, channelID)
	if err != nil {
		return fmt.Errorf("delete report register: %w", err)
	}
	return affected(res)
}

func (s *Store) ClanRole(ctx context.Context, guildID string) (store.ClanRole, error) {
	r := store.ClanRole{GuildID: guildID}
	err := s.db.QueryRowContext(ctx, `SELECT role_id FROM clan_member_role WHERE guild_id = ?`, guildID).Scan(&r.RoleID)
	if err != nil {
		return store.ClanRole{}, fmt.Errorf("get clan role %s: %w", guildID, notFound(err))
	}
	return r, nil
}

func (s *Store) PutClanRole(ctx context.Context, r store.ClanRole) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO clan_member_role (guild_id, role_id) VALUES (?, ?)
ON CONFLICT (guild_id) DO UPDATE SET role_id = excluded.role_id
`, r.GuildID, r.RoleID)
	if err != nil {
		return fmt.Errorf("put clan role %s: %w", r.GuildID, err)
	}
	return nil
}

func (s *Store) DeleteClanRole(ctx context.Context, guildID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clan_member_role WHERE guild_id = ?`, guildID)
	if err != nil {
		return fmt.Errorf("delete clan role %s: %w", guildID, err)
	}
	return affected(res)
}
