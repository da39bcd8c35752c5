// Package postgres — хранилище настроек на PostgreSQL через pgxpool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/EgorLis/clanbattlebot/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open подключается к базе по URL и создаёт таблицы.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func affected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Boss(ctx context.Context, number int) (store.Boss, error) {
	b := store.Boss{Number: number}
	err := s.pool.QueryRow(ctx, `SELECT name, hp FROM boss_info WHERE number = $1`, number).Scan(&b.Name, &b.HP)
	if err != nil {
		return store.Boss{}, fmt.Errorf("get boss %d: %w", number, notFound(err))
	}
	return b, nil
}

func (s *Store) Bosses(ctx context.Context) ([]store.Boss, error) {
	rows, err := s.pool.Query(ctx, `SELECT number, name, hp FROM boss_info ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bosses: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Boss, error) {
		var b store.Boss
		err := row.Scan(&b.Number, &b.Name, &b.HP)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan bosses: %w", err)
	}
	return out, nil
}

func (s *Store) PutBoss(ctx context.Context, b store.Boss) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO boss_info (number, name, hp) VALUES ($1, $2, $3)
ON CONFLICT (number) DO UPDATE SET name = excluded.name, hp = excluded.hp
`, b.Number, b.Name, b.HP)
	if err != nil {
		return fmt.Errorf("put boss %d: %w", b.Number, err)
	}
	return nil
}

func (s *Store) Schedule(ctx context.Context) (store.Schedule, error) {
	var sc store.Schedule
	err := s.pool.QueryRow(ctx, `SELECT start_date, end_date FROM clan_battle_schedule WHERE id = 1`).Scan(&sc.Start, &sc.End)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("get schedule: %w", notFound(err))
	}
	return sc, nil
}

func (s *Store) PutSchedule(ctx context.Context, sc store.Schedule) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO clan_battle_schedule (id, start_date, end_date) VALUES (1, $1, $2)
ON CONFLICT (id) DO UPDATE SET start_date = excluded.start_date, end_date = excluded.end_date
`, sc.Start, sc.End)
	if err != nil {
		return fmt.Errorf("put schedule: %w", err)
	}
	return nil
}

func (s *Store) Notify(ctx context.Context, guildID string) (store.Notify, error) {
	n := store.Notify{GuildID: guildID}
	err := s.pool.QueryRow(ctx, `SELECT channel_id, level FROM concurrent_attack_notify WHERE guild_id = $1`, guildID).
		Scan(&n.ChannelID, &n.Level)
	if err != nil {
		return store.Notify{}, fmt.Errorf("get notify %s: %w", guildID, notFound(err))
	}
	return n, nil
}

func (s *Store) PutNotify(ctx context.Context, n store.Notify) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO concurrent_attack_notify (guild_id, channel_id, level) VALUES ($1, $2, $3)
ON CONFLICT (guild_id) DO UPDATE SET channel_id = excluded.channel_id, level = excluded.level
`, n.GuildID, n.ChannelID, n.Level)
	if err != nil {
		return fmt.Errorf("put notify %s: %w", n.GuildID, err)
	}
	return nil
}

func (s *Store) DeleteNotify(ctx context.Context, guildID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM concurrent_attack_notify WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("delete notify %s: %w", guildID, err)
	}
	return affected(tag)
}

func (s *Store) Template(ctx context.Context, guildID string, kind store.TemplateKind, boss int) (store.Template, error) {
	t := store.Template{GuildID: guildID, Kind: kind, BossNumber: boss}
	err := s.pool.QueryRow(ctx, `
SELECT template, image_url FROM message_template
WHERE guild_id = $1 AND kind = $2 AND boss_number = $3
`, guildID, string(kind), boss).Scan(&t.Text, &t.ImageURL)
	if err != nil {
		return store.Template{}, fmt.Errorf("get template %s/%d: %w", kind, boss, notFound(err))
	}
	return t, nil
}

func (s *Store) PutTemplate(ctx context.Context, t store.Template) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO message_template (guild_id, kind, boss_number, template, image_url) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (guild_id, kind, boss_number) DO UPDATE SET template = excluded.template, image_url = excluded.image_url
`, t.GuildID, string(t.Kind), t.BossNumber, t.Text, t.ImageURL)
	if err != nil {
		return fmt.Errorf("put template %s/%d: %w", t.Kind, t.BossNumber, err)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, guildID string, kind store.TemplateKind, boss int) error {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM message_template WHERE guild_id = $1 AND kind = $2 AND boss_number = $3
`, guildID, string(kind), boss)
	if err != nil {
		return fmt.Errorf("delete template %s/%d: %w", kind, boss, err)
	}
	return affected(tag)
}

func (s *Store) ReportRegisters(ctx context.Context) ([]store.ReportRegister, error) {
	rows, err := s.pool.Query(ctx, `
SELECT guild_id, channel_id, last_published FROM attack_report_register ORDER BY guild_id, channel_id
`)
	if err != nil {
		return nil, fmt.Errorf("list report registers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ReportRegister, error) {
		var r store.ReportRegister
		err := row.Scan(&r.GuildID, &r.ChannelID, &r.LastPublished)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan report registers: %w", err)
	}
	return out, nil
}

func (s *Store) AddReportRegister(ctx context.Context, r store.ReportRegister) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO attack_report_register (guild_id, channel_id, last_published) VALUES ($1, $2, $3)
ON CONFLICT (guild_id, channel_id) DO NOTHING
`, r.GuildID, r.ChannelID, r.LastPublished)
	if err != nil {
		return false, fmt.Errorf("add report register: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) TouchReportRegister(ctx context.Context, guildID, channelID string, published time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE attack_report_register SET last_published = $1 WHERE guild_id = $2 AND channel_id = $3
`, published, guildID, channelID)
	if err != nil {
		return fmt.Errorf("touch report register: %w", err)
	}
	return affected(tag)
}

func (s *Store) DeleteReportRegister(ctx context.Context, guildID, channelID string) error {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM attack_report_register WHERE guild_id = $1 AND channel_id = $2
`, guildID, channelID)
	if err != nil {
		return fmt.Errorf("delete report register: %w", err)
	}
	return affected(tag)
}

func (s *Store) ClanRole(ctx context.Context, guildID string) (store.ClanRole, error) {
	r := store.ClanRole{GuildID: guildID}
	err := s.pool.QueryRow(ctx, `SELECT role_id FROM clan_member_role WHERE guild_id = $1`, guildID).Scan(&r.RoleID)
	if err != nil {
		return store.ClanRole{}, fmt.Errorf("get clan role %s: %w", guildID, notFound(err))
	}
	return r, nil
}

func (s *Store) PutClanRole(ctx context.Context, r store.ClanRole) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO clan_member_role (guild_id, role_id) VALUES ($1, $2)
ON CONFLICT (guild_id) DO UPDATE SET role_id = excluded.role_id
`, r.GuildID, r.RoleID)
	if err != nil {
		return fmt.Errorf("put clan role %s: %w", r.GuildID, err)
	}
	return nil
}

func (s *Store) DeleteClanRole(ctx context.Context, guildID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clan_member_role WHERE guild_id = $1`, guildID)
	if err != nil {
		return fmt.Errorf("delete clan role %s: %w", guildID, err)
	}
	return affected(tag)
}
