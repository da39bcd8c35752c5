package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/EgorLis/clanbattlebot/internal/carryover"
	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/store"
)

func TestCommandNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Commands() {
		if seen[c.Name] {
			t.Fatalf("duplicate command %q", c.Name)
		}
		seen[c.Name] = true
		if c.Description == "" {
			t.Errorf("%s: empty description", c.Name)
		}
	}
	for name := range adminCommands {
		if !seen[name] {
			t.Errorf("admin command %q is not registered", name)
		}
	}
}

func TestCarryOverCommand(t *testing.T) {
	env := newTestEnv(t)
	in := command("alice", "carry_over", optI("hp", 500), optI("dmg1", 300), optI("dmg2", 400))
	env.bot.HandleInteraction(context.Background(), in)
	r := env.fake.response(t, in)
	if r.Data == nil || len(r.Data.Embeds) != 1 {
		t.Fatalf("response = %+v", r)
	}
	e := r.Data.Embeds[0]
	if e.Title != "持ち越し時間算出" || e.Fields[0].Name != "ボスの残りHP(万):500" {
		t.Fatalf("embed = %+v", e)
	}
	if want := codeBlock(carryover.Table(500, []int{300, 400})...); e.Fields[0].Value != want {
		t.Fatalf("table =\n%s\nwant\n%s", e.Fields[0].Value, want)
	}
}

func TestCarryOverRejectsZeroDamage(t *testing.T) {
	env := newTestEnv(t)
	in := command("alice", "carry_over", optI("hp", 500), optI("dmg1", 0))
	env.bot.HandleInteraction(context.Background(), in)
	if got := content(t, env.fake.response(t, in)); got != "ダメージは1以上で入力して下さい。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestFullbackCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := command("alice", "fullback", optI("hp", 300))
	env.bot.HandleInteraction(ctx, in)
	e := env.fake.response(t, in).Data.Embeds[0]
	if want := codeBlock("持越: 90秒 = 1286"); e.Fields[0].Value != want {
		t.Fatalf("value = %q, want %q", e.Fields[0].Value, want)
	}

	bad := command("alice", "fullback", optI("hp", 300), optI("carry_time", 111))
	env.bot.HandleInteraction(ctx, bad)
	if got := content(t, env.fake.response(t, bad)); got != "持ち越し時間は110秒以下で入力して下さい。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestAdminCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	denied := command("alice", "set_boss", optI("boss_num", 2), optS("name", "Wyvern"), optI("hp", 800))
	env.bot.HandleInteraction(ctx, denied)
	if got := content(t, env.fake.response(t, denied)); got != "このコマンドは管理者のみ実行できます。" {
		t.Fatalf("reply = %q", got)
	}
	if _, err := env.store.Boss(ctx, 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("boss saved by non-admin: %v", err)
	}

	ok := command("admin", "set_boss", optI("boss_num", 2), optS("name", " Wyvern "), optI("hp", 800))
	env.bot.HandleInteraction(ctx, ok)
	if got := content(t, env.fake.response(t, ok)); got != "ボス登録完了 番号:2, 名前:Wyvern, HP:800" {
		t.Fatalf("reply = %q", got)
	}

	list := command("admin", "get_bosses")
	env.bot.HandleInteraction(ctx, list)
	r := env.fake.response(t, list)
	if r.Data.Flags != discord.FlagEphemeral || len(r.Data.Embeds[0].Fields) != 1 {
		t.Fatalf("bosses = %+v", r.Data)
	}
	if f := r.Data.Embeds[0].Fields[0]; f.Name != "2ボス" || f.Value != "名前:Wyvern, HP:800(万)" {
		t.Fatalf("field = %+v", f)
	}

	empty := command("admin", "set_boss", optI("boss_num", 3), optS("name", ""), optI("hp", 800))
	env.bot.HandleInteraction(ctx, empty)
	if got := content(t, env.fake.response(t, empty)); got != "ボス情報の登録に失敗しました。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestScheduleCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	get := command("admin", "get_clan_battle_schedule")
	env.bot.HandleInteraction(ctx, get)
	if e := env.fake.response(t, get).Data.Embeds[0]; e.Footer == nil || e.Footer.Text != "Not Found" {
		t.Fatalf("empty schedule = %+v", e)
	}

	backwards := command("admin", "set_clan_battle_schedule", optS("start_date", "2026-10-16"), optS("end_date", "2026-10-12"))
	env.bot.HandleInteraction(ctx, backwards)
	if got := content(t, env.fake.response(t, backwards)); got != "クランバトル開催期間の登録に失敗しました。" {
		t.Fatalf("reply = %q", got)
	}

	set := command("admin", "set_clan_battle_schedule", optS("start_date", "2026-10-12"), optS("end_date", "2026-10-16"))
	env.bot.HandleInteraction(ctx, set)
	if got := content(t, env.fake.response(t, set)); got != "クランバトル開催期間登録完了 開始日:2026-10-12, 終了日:2026-10-16" {
		t.Fatalf("reply = %q", got)
	}

	get = command("admin", "get_clan_battle_schedule")
	env.bot.HandleInteraction(ctx, get)
	e := env.fake.response(t, get).Data.Embeds[0]
	if len(e.Fields) != 2 || e.Fields[0].Value != "2026-10-12" || e.Fields[1].Value != "2026-10-16" {
		t.Fatalf("schedule = %+v", e)
	}
}

func TestNotifyRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	none := command("alice", "notify_concurrent_atk_unregister")
	env.bot.HandleInteraction(ctx, none)
	if got := content(t, env.fake.response(t, none)); got != "このサーバーに同時凸の通知は登録されていません。" {
		t.Fatalf("reply = %q", got)
	}

	reg := command("alice", "notify_concurrent_atk_register", optI("level", 3))
	env.bot.HandleInteraction(ctx, reg)
	if got := content(t, env.fake.response(t, reg)); got != "このチャンネルに同時凸の通知(level=3)を登録しました。" {
		t.Fatalf("reply = %q", got)
	}
	n, err := env.store.Notify(ctx, "g1")
	if err != nil || n.ChannelID != "c1" || n.Level != 3 {
		t.Fatalf("notify = %+v, %v", n, err)
	}

	unreg := command("alice", "notify_concurrent_atk_unregister")
	env.bot.HandleInteraction(ctx, unreg)
	if got := content(t, env.fake.response(t, unreg)); got != "同時凸の通知(channel=<#c1>)を登録解除しました。" {
		t.Fatalf("reply = %q", got)
	}
	if _, err := env.store.Notify(ctx, "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("notify still registered: %v", err)
	}
}

func TestTemplateCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	set := command("alice", "set_unfreeze_template", optI("boss_number", 2), optS("template", "$boss_name 解凍"), optS("img_url", "https://example.com/u.png"))
	env.bot.HandleInteraction(ctx, set)
	if got := content(t, env.fake.response(t, set)); got != "解凍メッセージ(2ボス)のテンプレートの設定をしました。" {
		t.Fatalf("reply = %q", got)
	}

	// удаление шаблона другого вида не трогает этот
	other := command("alice", "remove_attack_start_template", optI("boss_number", 2))
	env.bot.HandleInteraction(ctx, other)
	if got := content(t, env.fake.response(t, other)); got != "凸開始メッセージ(2ボス)のテンプレートの設定がされていません。" {
		t.Fatalf("reply = %q", got)
	}
	if _, err := env.store.Template(ctx, "g1", store.TemplateUnfreeze, 2); err != nil {
		t.Fatalf("unfreeze template lost: %v", err)
	}

	rm := command("alice", "remove_unfreeze_template", optI("boss_number", 2))
	env.bot.HandleInteraction(ctx, rm)
	if got := content(t, env.fake.response(t, rm)); got != "解凍メッセージ(2ボス)のテンプレートの設定を削除しました。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestClanRoleCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	set := command("admin", "set_clan_role", optS("role", "r1"))
	env.bot.HandleInteraction(ctx, set)
	if got := content(t, env.fake.response(t, set)); got != "クランメンバーのロール(<@&r1>)を設定しました。" {
		t.Fatalf("reply = %q", got)
	}
	rm := command("admin", "remove_clan_role")
	env.bot.HandleInteraction(ctx, rm)
	if got := content(t, env.fake.response(t, rm)); got != "クランメンバーのロールの設定を削除しました。" {
		t.Fatalf("reply = %q", got)
	}
	again := command("admin", "remove_clan_role")
	env.bot.HandleInteraction(ctx, again)
	if got := content(t, env.fake.response(t, again)); got != "クランメンバーのロールは設定されていません。" {
		t.Fatalf("reply = %q", got)
	}
}

func TestDeleteMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fake.messages["c1/m1"] = &discord.Message{ID: "m1", ChannelID: "c1", Content: testHeader, Author: &discord.User{ID: "app"}}
	env.fake.messages["c1/m2"] = &discord.Message{ID: "m2", ChannelID: "c1", Content: "hi", Author: &discord.User{ID: "u-bob"}}

	// ростер уже в кэше
	env.bot.HandleInteraction(ctx, submit("alice", "target_damage:0", env.fake.messages["c1/m1"], map[string]string{"target": "1"}))
	if env.bot.Rosters().Len() != 1 {
		t.Fatal("roster not cached")
	}

	tests := []struct {
		id   string
		want string
	}{
		{"m2", "対象メッセージ(ID:m2)はbotメッセージではありません。"},
		{"m3", "対象メッセージ(ID:m3)が見つかりませんでした。"},
		{"m1", "対象メッセージ(ID:m1)を削除しました。"},
	}
	for _, tt := range tests {
		in := command("alice", "del_message", optS("message_id", tt.id))
		env.bot.HandleInteraction(ctx, in)
		if got := content(t, env.fake.response(t, in)); got != tt.want {
			t.Errorf("del %s = %q, want %q", tt.id, got, tt.want)
		}
	}
	if len(env.fake.deleted) != 1 || env.fake.deleted[0] != "m1" {
		t.Fatalf("deleted = %v", env.fake.deleted)
	}
	if env.bot.Rosters().Len() != 0 {
		t.Fatal("deleted roster stays cached")
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	in := base(discord.InteractionPing, "alice", nil)
	env.bot.HandleInteraction(context.Background(), in)
	if r := env.fake.response(t, in); r.Type != discord.ResponsePong {
		t.Fatalf("response type = %d", r.Type)
	}
}
