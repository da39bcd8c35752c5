package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("tkn", "app1", WithBaseURL(srv.URL))
}

func TestEditMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/channels/c1/messages/m1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bot tkn" {
			t.Errorf("authorization = %q", got)
		}
		var edit map[string]any
		if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if edit["content"] != "1:B 残りHP(万):1\n------" {
			t.Errorf("content = %v", edit["content"])
		}
		if _, ok := edit["embeds"]; ok {
			t.Error("embeds must be omitted when not set")
		}
		_ = json.NewEncoder(w).Encode(Message{ID: "m1", ChannelID: "c1", Content: edit["content"].(string)})
	})

	m, err := c.EditMessage(context.Background(), "c1", "m1", MessageEdit{Content: Text("1:B 残りHP(万):1\n------")})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if m.ID != "m1" {
		t.Fatalf("message = %+v", m)
	}
}

func TestAPIErrorNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message": "Unknown Message", "code": 10008}`)
	})
	_, err := c.ChannelMessage(context.Background(), "c1", "m1")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var ae *APIError
	if !errors.As(err, &ae) || ae.Code != 10008 || ae.Message != "Unknown Message" {
		t.Fatalf("api error = %+v", ae)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"message": "You are being rate limited.", "retry_after": 0.01, "global": false}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteMessage(context.Background(), "c1", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestRespondAndRegister(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			_, _ = io.WriteString(w, "[]")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()
	in := &Interaction{ID: "i1", Token: "itok"}
	if err := c.Respond(ctx, in, InteractionResponse{Type: ResponseDeferredUpdateMsg}); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterCommands(ctx, "g1", []ApplicationCommand{{Name: "fullback", Description: "d"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterCommands(ctx, "", nil); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"POST /interactions/i1/itok/callback",
		"PUT /applications/app1/guilds/g1/commands",
		"PUT /applications/app1/commands",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestRespondOmitsUnsetFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Type int            `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Type != ResponseUpdateMessage || body.Data["content"] != "text" {
			t.Errorf("body = %+v", body)
		}
		// UPDATE_MESSAGE без components не трогает кнопки сообщения
		if _, ok := body.Data["components"]; ok {
			t.Error("components must be omitted")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	err := c.Respond(context.Background(), &Interaction{ID: "i1", Token: "itok"}, InteractionResponse{
		Type: ResponseUpdateMessage,
		Data: &ResponseData{Content: Text("text")},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateMessageComponents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/channels/c1/messages" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var send struct {
			Embeds []struct {
				Title  string `json:"title"`
				Footer struct {
					Text string `json:"text"`
				} `json:"footer"`
			} `json:"embeds"`
			Components []struct {
				Type       int `json:"type"`
				Components []struct {
					Type     int    `json:"type"`
					CustomID string `json:"custom_id"`
					Style    int    `json:"style"`
					Emoji    struct {
						Name string `json:"name"`
					} `json:"emoji"`
					Options []struct {
						Value string `json:"value"`
					} `json:"options"`
				} `json:"components"`
			} `json:"components"`
		}
		if err := json.NewDecoder(r.Body).Decode(&send); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(send.Embeds) != 1 || send.Embeds[0].Title != "t" || send.Embeds[0].Footer.Text != "f" {
			t.Errorf("embeds = %+v", send.Embeds)
		}
		if len(send.Components) != 2 || send.Components[0].Type != ComponentActionRow {
			t.Fatalf("components = %+v", send.Components)
		}
		btn := send.Components[0].Components[0]
		if btn.Type != ComponentButton || btn.CustomID != "attack_finished" || btn.Style != ButtonSuccess || btn.Emoji.Name != "✅" {
			t.Errorf("button = %+v", btn)
		}
		menu := send.Components[1].Components[0]
		if menu.Type != ComponentStringMenu || len(menu.Options) != 1 || menu.Options[0].Value != "v" {
			t.Errorf("menu = %+v", menu)
		}
		_, _ = io.WriteString(w, `{"id": "m9", "channel_id": "c1", "content": "", "components": [{"type": 1, "components": [{"type": 2, "custom_id": "attack_finished", "style": 3}]}]}`)
	})

	m, err := c.CreateMessage(context.Background(), "c1", MessageSend{
		Embeds: []Embed{{Title: "t", Footer: &EmbedFooter{Text: "f"}}},
		Components: []Component{
			Row(Component{Type: ComponentButton, CustomID: "attack_finished", Label: "完了", Style: ButtonSuccess, Emoji: &Emoji{Name: "✅"}}),
			Row(Component{Type: ComponentStringMenu, CustomID: "sel", Options: []SelectOption{{Label: "l", Value: "v"}}}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "m9" || len(m.Components) != 1 || m.Components[0].Components[0].CustomID != "attack_finished" {
		t.Fatalf("message = %+v", m)
	}
}

func TestTextInputRequiredDefault(t *testing.T) {
	optional := false
	in := dgComponent(Component{Type: ComponentTextInput, CustomID: "a"})
	opt := dgComponent(Component{Type: ComponentTextInput, CustomID: "b", Required: &optional})
	data, err := json.Marshal([]any{in, opt})
	if err != nil {
		t.Fatal(err)
	}
	var got []struct {
		Type     int  `json:"type"`
		Required bool `json:"required"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got[0].Type != ComponentTextInput || !got[0].Required || got[1].Required {
		t.Fatalf("text inputs = %s", data)
	}
}

func TestSearchMembers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "山田" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `[{"user": {"id": "u1", "username": "yamada"}, "nick": "山田"}]`)
	})
	ms, err := c.SearchMembers(context.Background(), "g1", "山田", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].DisplayName() != "山田" || ms[0].User.Mention() != "<@u1>" {
		t.Fatalf("members = %+v", ms)
	}
}

func TestInteractionDecoding(t *testing.T) {
	raw := `{
		"id": "i1", "type": 5, "token": "t", "guild_id": "g1", "channel_id": "c1",
		"member": {"user": {"id": "u1", "username": "alice", "global_name": "Alice"}},
		"data": {"custom_id": "damage_modal", "components": [
			{"type": 1, "components": [{"type": 4, "custom_id": "damage", "value": "１３０"}]}
		]},
		"message": {"id": "m1", "channel_id": "c1", "content": "1:B 残りHP(万):1\n------"}
	}`
	var in Interaction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		t.Fatal(err)
	}
	if in.DisplayName() != "Alice" || in.Actor().ID != "u1" {
		t.Fatalf("actor = %q %+v", in.DisplayName(), in.Actor())
	}
	if v := in.Data.TextValue("damage"); v != "１３０" {
		t.Fatalf("damage value = %q", v)
	}

	raw = `{"name": "carry_over", "options": [{"name": "hp", "type": 4, "value": 500}, {"name": "msg", "type": 3, "value": "123"}]}`
	var d InteractionData
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatal(err)
	}
	hp, _ := d.Option("hp")
	if n, ok := hp.Int(); !ok || n != 500 {
		t.Fatalf("hp = %d ok=%v", n, ok)
	}
	msg, _ := d.Option("msg")
	if msg.String() != "123" {
		t.Fatalf("msg = %q", msg.String())
	}
}
