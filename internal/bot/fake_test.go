package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/EgorLis/clanbattlebot/internal/discord"
	"github.com/EgorLis/clanbattlebot/internal/store/sqlite"
)

type editCall struct {
	channelID, messageID string
	edit                 discord.MessageEdit
}

// fakePlatform записывает всё, что бот отправил в Discord.
type fakePlatform struct {
	mu        sync.Mutex
	responses map[string]discord.InteractionResponse // по id взаимодействия
	order     []string
	originals []discord.MessageEdit
	created   map[string][]discord.MessageSend
	edits     []editCall
	deleted   []string

	messages map[string]*discord.Message // channel/id
	members  map[string][]discord.Member // запрос -> результат
	gone     map[string]bool             // каналы, которых нет
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		responses: map[string]discord.InteractionResponse{},
		created:   map[string][]discord.MessageSend{},
		messages:  map[string]*discord.Message{},
		members:   map[string][]discord.Member{},
		gone:      map[string]bool{},
	}
}

var errNotFound = &discord.APIError{Status: http.StatusNotFound, Code: 10003, Message: "Unknown Channel"}

func (p *fakePlatform) Respond(_ context.Context, in *discord.Interaction, resp discord.InteractionResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[in.ID] = resp
	p.order = append(p.order, in.ID)
	return nil
}

func (p *fakePlatform) EditOriginal(_ context.Context, _ string, edit discord.MessageEdit) (*discord.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.originals = append(p.originals, edit)
	return &discord.Message{}, nil
}

func (p *fakePlatform) ChannelMessage(_ context.Context, channelID, messageID string) (*discord.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[channelID+"/"+messageID]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (p *fakePlatform) CreateMessage(_ context.Context, channelID string, send discord.MessageSend) (*discord.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone[channelID] {
		return nil, errNotFound
	}
	p.created[channelID] = append(p.created[channelID], send)
	return &discord.Message{ChannelID: channelID}, nil
}

func (p *fakePlatform) EditMessage(_ context.Context, channelID, messageID string, edit discord.MessageEdit) (*discord.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, editCall{channelID, messageID, edit})
	if m, ok := p.messages[channelID+"/"+messageID]; ok && edit.Content != nil {
		m.Content = *edit.Content
	}
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.messages, channelID+"/"+messageID)
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *fakePlatform) SearchMembers(_ context.Context, _, query string, _ int) ([]discord.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[query], nil
}

func (p *fakePlatform) response(t *testing.T, in *discord.Interaction) discord.InteractionResponse {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.responses[in.ID]
	if !ok {
		t.Fatalf("no response to %s (%s)", in.ID, in.Data.CustomID+in.Data.Name)
	}
	return r
}

func (p *fakePlatform) sent(channelID string) []discord.MessageSend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]discord.MessageSend(nil), p.created[channelID]...)
}

type testEnv struct {
	bot   *Bot
	fake  *fakePlatform
	store *sqlite.Store
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := Config{
		ApplicationID: "app",
		AdminUserIDs:  []string{"u-admin"},
		ReportHour:    20,
		ReportZone:    "Asia/Tokyo",
	}
	fake := newFakePlatform()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	b, err := New(cfg, fake, st, opts...)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return &testEnv{bot: b, fake: fake, store: st}
}

var seq atomic.Int64

func nextID() string { return "i" + strconv.FormatInt(seq.Add(1), 10) }

func memberNamed(name string) *discord.Member {
	return &discord.Member{User: &discord.User{ID: "u-" + name, Username: name}}
}

func base(typ int, user string, msg *discord.Message) *discord.Interaction {
	return &discord.Interaction{
		ID:        nextID(),
		Type:      typ,
		Token:     "tok",
		GuildID:   "g1",
		ChannelID: "c1",
		Member:    memberNamed(user),
		Message:   msg,
	}
}

func press(user, customID string, msg *discord.Message, values ...string) *discord.Interaction {
	in := base(discord.InteractionMessageComponent, user, msg)
	in.Data = discord.InteractionData{CustomID: customID, Values: values}
	return in
}

func submit(user, customID string, msg *discord.Message, fields map[string]string) *discord.Interaction {
	in := base(discord.InteractionModalSubmit, user, msg)
	in.Data = discord.InteractionData{CustomID: customID}
	for k, v := range fields {
		in.Data.Components = append(in.Data.Components, discord.Row(discord.Component{
			Type: discord.ComponentTextInput, CustomID: k, Value: v,
		}))
	}
	return in
}

func command(user, name string, opts ...discord.CommandOption) *discord.Interaction {
	in := base(discord.InteractionApplicationCmd, user, nil)
	in.Data = discord.InteractionData{Name: name, Options: opts}
	return in
}

func optI(name string, v int) discord.CommandOption {
	return discord.CommandOption{Name: name, Type: discord.OptionInteger, Value: json.RawMessage(strconv.Itoa(v))}
}

func optS(name, v string) discord.CommandOption {
	raw, _ := json.Marshal(v)
	return discord.CommandOption{Name: name, Type: discord.OptionString, Value: raw}
}

func content(t *testing.T, r discord.InteractionResponse) string {
	t.Helper()
	if r.Data == nil || r.Data.Content == nil {
		t.Fatalf("response without content: %+v", r)
	}
	return *r.Data.Content
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
