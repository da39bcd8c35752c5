package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// APIError — ответ Discord с кодом не 2xx.
type APIError struct {
	Status  int
	Code    int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: %s %s: %d %s (code %d)", e.Method, e.Path, e.Status, e.Message, e.Code)
}

// IsNotFound — сообщение, канал или гильдия не существуют (или удалены).
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Client — REST-часть Discord поверх сессии discordgo: авторизация,
// бакеты лимитов и повторы после 429 остаются на ней. Типы наружу — свои.
type Client struct {
	s     *discordgo.Session
	appID string
}

type ClientOption func(*Client)

// WithBaseURL направляет все запросы на другой адрес (для тестов): путь
// после версии API сохраняется.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		base, err := url.Parse(u)
		if err != nil {
			return
		}
		next := c.s.Client.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		c.s.Client.Transport = rebase{base: base, next: next}
	}
}

// WithHTTPClient задаёт http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.s.Client = h }
}

func NewClient(token, appID string, opts ...ClientOption) *Client {
	s, _ := discordgo.New("Bot " + token) // ошибок для токена без логина нет
	s.Client = &http.Client{Timeout: 10 * time.Second}
	s.UserAgent = "DiscordBot (https://github.com/EgorLis/clanbattlebot, 1.0)"
	s.MaxRestRetries = 3
	s.ShouldRetryOnRateLimit = true
	c := &Client{s: s, appID: appID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplicationID — id приложения бота.
func (c *Client) ApplicationID() string { return c.appID }

// Respond отвечает на взаимодействие (3 секунды с момента события).
// InteractionResponseData всегда шлёт content и components, а UPDATE_MESSAGE
// с пустыми полями стёр бы текст или кнопки ростера; поэтому тело уходит
// нашим типом через тот же конвейер сессии.
func (c *Client) Respond(ctx context.Context, in *Interaction, resp InteractionResponse) error {
	endpoint := discordgo.EndpointInteractionResponse(in.ID, in.Token)
	_, err := c.s.RequestWithBucketID(http.MethodPost, endpoint, resp, endpoint, discordgo.WithContext(ctx))
	return apiError(err)
}

// EditOriginal правит исходный ответ на взаимодействие (после defer).
func (c *Client) EditOriginal(ctx context.Context, token string, edit MessageEdit) (*Message, error) {
	we := &discordgo.WebhookEdit{Content: edit.Content}
	if edit.Embeds != nil {
		es := dgEmbeds(*edit.Embeds)
		we.Embeds = &es
	}
	if edit.Components != nil {
		cs := dgComponents(*edit.Components)
		we.Components = &cs
	}
	m, err := c.s.InteractionResponseEdit(&discordgo.Interaction{AppID: c.appID, Token: token}, we, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fromDG[*Message](m)
}

func (c *Client) ChannelMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	m, err := c.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fromDG[*Message](m)
}

func (c *Client) CreateMessage(ctx context.Context, channelID string, send MessageSend) (*Message, error) {
	m, err := c.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    send.Content,
		Embeds:     dgEmbeds(send.Embeds),
		Components: dgComponents(send.Components),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fromDG[*Message](m)
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, edit MessageEdit) (*Message, error) {
	me := discordgo.NewMessageEdit(channelID, messageID)
	me.Content = edit.Content
	if edit.Embeds != nil {
		es := dgEmbeds(*edit.Embeds)
		me.Embeds = &es
	}
	if edit.Components != nil {
		cs := dgComponents(*edit.Components)
		me.Components = &cs
	}
	m, err := c.s.ChannelMessageEditComplex(me, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fromDG[*Message](m)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return apiError(c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

// SearchMembers ищет участников гильдии по началу ника или имени.
func (c *Client) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]Member, error) {
	ms, err := c.s.GuildMembersSearch(guildID, query, limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return fromDG[[]Member](ms)
}

// RegisterCommands перезаписывает слэш-команды приложения; guildID == ""
// — глобальные команды.
func (c *Client) RegisterCommands(ctx context.Context, guildID string, cmds []ApplicationCommand) error {
	dg, err := fromDG[[]*discordgo.ApplicationCommand](cmds)
	if err != nil {
		return err
	}
	if dg == nil {
		dg = []*discordgo.ApplicationCommand{}
	}
	_, err = c.s.ApplicationCommandBulkOverwrite(c.appID, guildID, dg, discordgo.WithContext(ctx))
	return apiError(err)
}

// GatewayURL — адрес шлюза для бота.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	g, err := c.s.GatewayBot(discordgo.WithContext(ctx))
	if err != nil {
		return "", apiError(err)
	}
	return g.URL, nil
}

// apiError переводит *discordgo.RESTError в *APIError.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var re *discordgo.RESTError
	if !errors.As(err, &re) {
		return fmt.Errorf("discord: %w", err)
	}
	ae := &APIError{}
	if re.Request != nil {
		ae.Method, ae.Path = re.Request.Method, apiPath(re.Request.URL)
	}
	if re.Response != nil {
		ae.Status = re.Response.StatusCode
	}
	if re.Message != nil {
		ae.Code, ae.Message = re.Message.Code, re.Message.Message
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(ae.Status)
	}
	return ae
}

// apiPath — путь запроса без префикса /api/vN.
func apiPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := u.Path
	if rest, ok := strings.CutPrefix(p, "/api/v"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[i:]
		}
	}
	return p
}

// fromDG перекладывает значение между типами discordgo и нашими через JSON:
// у обоих одни и те же поля API.
func fromDG[T any](v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("discord: encode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("discord: decode %T: %w", out, err)
	}
	return out, nil
}

// dgEmbeds и dgComponents не возвращают nil: в правке пустой срез
// означает "убрать всё", а null Discord понимает иначе.
func dgEmbeds(es []Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, len(es))
	for i, e := range es {
		me := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if e.Author != nil {
			me.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
		}
		if e.Image != nil {
			me.Image = &discordgo.MessageEmbedImage{URL: e.Image.URL}
		}
		if e.Footer != nil {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer.Text}
		}
		out[i] = me
	}
	return out
}

func dgComponents(cs []Component) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(cs))
	for _, c := range cs {
		if m := dgComponent(c); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func dgComponent(c Component) discordgo.MessageComponent {
	switch c.Type {
	case ComponentActionRow:
		return discordgo.ActionsRow{Components: dgComponents(c.Components)}
	case ComponentButton:
		return discordgo.Button{
			CustomID: c.CustomID,
			Label:    c.Label,
			Style:    discordgo.ButtonStyle(c.Style),
			Emoji:    dgEmoji(c.Emoji),
		}
	case ComponentStringMenu:
		opts := make([]discordgo.SelectMenuOption, len(c.Options))
		for i, o := range c.Options {
			opts[i] = discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Emoji: dgEmoji(o.Emoji)}
		}
		return discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    c.CustomID,
			Placeholder: c.Placeholder,
			MinValues:   c.MinValues,
			MaxValues:   c.MaxValues,
			Options:     opts,
		}
	case ComponentTextInput:
		return discordgo.TextInput{
			CustomID:    c.CustomID,
			Label:       c.Label,
			Style:       discordgo.TextInputStyle(c.Style),
			Placeholder: c.Placeholder,
			Value:       c.Value,
			Required:    c.Required == nil || *c.Required,
		}
	}
	return nil
}

func dgEmoji(e *Emoji) *discordgo.ComponentEmoji {
	if e == nil {
		return nil
	}
	return &discordgo.ComponentEmoji{Name: e.Name}
}

// rebase переписывает https://discord.com/api/vN/... на base.
type rebase struct {
	base *url.URL
	next http.RoundTripper
}

func (t rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	u := *req.URL
	u.Scheme, u.Host = t.base.Scheme, t.base.Host
	u.Path = strings.TrimSuffix(t.base.Path, "/") + apiPath(req.URL)
	u.RawPath = ""
	r.URL, r.Host = &u, t.base.Host
	return t.next.RoundTrip(r)
}
