// Package storetest — общий набор проверок для реализаций store.Store.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/EgorLis/clanbattlebot/internal/store"
)

func date(s string) time.Time {
	t, err := store.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Run прогоняет набор на хранилище, которое создаёт open. Каждая
// подпроверка получает чистое хранилище.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("bosses", func(t *testing.T) { testBosses(t, open(t)) })
	t.Run("schedule", func(t *testing.T) { testSchedule(t, open(t)) })
	t.Run("notify", func(t *testing.T) { testNotify(t, open(t)) })
	t.Run("templates", func(t *testing.T) { testTemplates(t, open(t)) })
	t.Run("report registers", func(t *testing.T) { testReportRegisters(t, open(t)) })
	t.Run("clan role", func(t *testing.T) { testClanRole(t, open(t)) })
}

func testBosses(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Boss(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, b := range []store.Boss{{2, "ワイバーン", 800}, {1, "ゴブリン", 600}, {1, "ゴブリングレート", 700}} {
		if err := s.PutBoss(ctx, b); err != nil {
			t.Fatalf("put boss: %v", err)
		}
	}
	b, err := s.Boss(ctx, 1)
	if err != nil {
		t.Fatalf("get boss: %v", err)
	}
	if b != (store.Boss{Number: 1, Name: "ゴブリングレート", HP: 700}) {
		t.Fatalf("boss = %+v", b)
	}
	all, err := s.Bosses(ctx)
	if err != nil {
		t.Fatalf("list bosses: %v", err)
	}
	if len(all) != 2 || all[0].Number != 1 || all[1].Number != 2 {
		t.Fatalf("bosses = %+v", all)
	}
}

func testSchedule(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Schedule(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	want := store.Schedule{Start: date("2026-10-25"), End: date("2026-10-29")}
	if err := s.PutSchedule(ctx, store.Schedule{Start: date("2026-09-01"), End: date("2026-09-05")}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSchedule(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Schedule(ctx)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Fatalf("schedule = %+v, want %+v", got, want)
	}
}

func testNotify(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.PutNotify(ctx, store.Notify{GuildID: "g1", ChannelID: "c1", Level: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutNotify(ctx, store.Notify{GuildID: "g1", ChannelID: "c2", Level: 3}); err != nil {
		t.Fatal(err)
	}
	n, err := s.Notify(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if n != (store.Notify{GuildID: "g1", ChannelID: "c2", Level: 3}) {
		t.Fatalf("notify = %+v", n)
	}
	if err := s.DeleteNotify(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNotify(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Notify(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testTemplates(t *testing.T, s store.Store) {
	ctx := context.Background()
	start := store.Template{GuildID: "g1", Kind: store.TemplateAttackStart, BossNumber: 3, Text: "$boss_name 開始", ImageURL: "https://example.com/a.png"}
	unfreeze := store.Template{GuildID: "g1", Kind: store.TemplateUnfreeze, BossNumber: 3, Text: "解凍"}
	for _, tpl := range []store.Template{start, unfreeze} {
		if err := s.PutTemplate(ctx, tpl); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Template(ctx, "g1", store.TemplateAttackStart, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != start {
		t.Fatalf("template = %+v", got)
	}
	if err := s.DeleteTemplate(ctx, "g1", store.TemplateAttackStart, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Template(ctx, "g1", store.TemplateAttackStart, 3); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// шаблон разморозки того же босса остаётся
	if _, err := s.Template(ctx, "g1", store.TemplateUnfreeze, 3); err != nil {
		t.Fatalf("unfreeze template: %v", err)
	}
}

func testReportRegisters(t *testing.T, s store.Store) {
	ctx := context.Background()
	reg := store.ReportRegister{GuildID: "g1", ChannelID: "c1", LastPublished: date("2020-01-01")}
	added, err := s.AddReportRegister(ctx, reg)
	if err != nil || !added {
		t.Fatalf("add: added=%v err=%v", added, err)
	}
	added, err = s.AddReportRegister(ctx, reg)
	if err != nil || added {
		t.Fatalf("second add: added=%v err=%v", added, err)
	}
	if err := s.TouchReportRegister(ctx, "g1", "c1", date("2026-10-25")); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchReportRegister(ctx, "g1", "nope", date("2026-10-25")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("touch unknown: %v", err)
	}
	regs, err := s.ReportRegisters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(regs) != 1 || !regs[0].LastPublished.Equal(date("2026-10-25")) {
		t.Fatalf("registers = %+v", regs)
	}
	if err := s.DeleteReportRegister(ctx, "g1", "c1"); err != nil {
		t.Fatal(err)
	}
	regs, err = s.ReportRegisters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(regs) != 0 {
		t.Fatalf("registers after delete = %+v", regs)
	}
}

func testClanRole(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.PutClanRole(ctx, store.ClanRole{GuildID: "g1", RoleID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutClanRole(ctx, store.ClanRole{GuildID: "g1", RoleID: "r2"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.ClanRole(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, store.ClanRole{GuildID: "g1", RoleID: "r2"}) {
		t.Fatalf("role = %+v", got)
	}
	if err := s.DeleteClanRole(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClanRole(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
