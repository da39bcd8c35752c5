package discord

import (
	"encoding/json"
	"strconv"
)

type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// AvatarURL — ссылка на аватар пользователя (пусто, если аватара нет).
func (u *User) AvatarURL() string {
	if u == nil || u.Avatar == "" {
		return ""
	}
	return "https://cdn.discordapp.com/avatars/" + u.ID + "/" + u.Avatar + ".png"
}

// Mention — "<@id>".
func (u *User) Mention() string { return "<@" + u.ID + ">" }

type Member struct {
	User  *User    `json:"user,omitempty"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// DisplayName — ник на сервере, иначе глобальное имя, иначе username.
func (m *Member) DisplayName() string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

type Message struct {
	ID         string      `json:"id"`
	ChannelID  string      `json:"channel_id"`
	GuildID    string      `json:"guild_id,omitempty"`
	Content    string      `json:"content"`
	Author     *User       `json:"author,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// JumpURL — ссылка на сообщение.
func (m *Message) JumpURL() string {
	guild := m.GuildID
	if guild == "" {
		guild = "@me"
	}
	return "https://discord.com/channels/" + guild + "/" + m.ChannelID + "/" + m.ID
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// Field возвращает поле эмбеда по имени.
func (e *Embed) Field(name string) (EmbedField, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return EmbedField{}, false
}

// Типы компонентов.
const (
	ComponentActionRow  = 1
	ComponentButton     = 2
	ComponentStringMenu = 3
	ComponentTextInput  = 4
)

// Стили кнопок.
const (
	ButtonPrimary   = 1
	ButtonSecondary = 2
	ButtonSuccess   = 3
	ButtonDanger    = 4
)

// Стили полей ввода.
const (
	TextInputShort     = 1
	TextInputParagraph = 2
)

type Component struct {
	Type        int            `json:"type"`
	CustomID    string         `json:"custom_id,omitempty"`
	Label       string         `json:"label,omitempty"`
	Style       int            `json:"style,omitempty"`
	Emoji       *Emoji         `json:"emoji,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	MinValues   *int           `json:"min_values,omitempty"`
	MaxValues   int            `json:"max_values,omitempty"`
	Value       string         `json:"value,omitempty"`
	Required    *bool          `json:"required,omitempty"`
	Components  []Component    `json:"components,omitempty"`
}

type Emoji struct {
	Name string `json:"name"`
}

type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Emoji *Emoji `json:"emoji,omitempty"`
}

// Row — строка компонентов.
func Row(cs ...Component) Component {
	return Component{Type: ComponentActionRow, Components: cs}
}

// Типы взаимодействий.
const (
	InteractionPing             = 1
	InteractionApplicationCmd   = 2
	InteractionMessageComponent = 3
	InteractionAutocomplete     = 4
	InteractionModalSubmit      = 5
)

type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Data          InteractionData `json:"data"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Token         string          `json:"token"`
	Message       *Message        `json:"message,omitempty"`
}

// Actor — кто нажал: участник гильдии или пользователь в личке.
func (in *Interaction) Actor() *User {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User
	}
	return in.User
}

// DisplayName — отображаемое имя нажавшего.
func (in *Interaction) DisplayName() string {
	if in.Member != nil {
		return in.Member.DisplayName()
	}
	if in.User != nil {
		return (&Member{User: in.User}).DisplayName()
	}
	return ""
}

type InteractionData struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name,omitempty"`
	Options       []CommandOption `json:"options,omitempty"`
	CustomID      string          `json:"custom_id,omitempty"`
	ComponentType int             `json:"component_type,omitempty"`
	Values        []string        `json:"values,omitempty"`
	Components    []Component     `json:"components,omitempty"`
}

// TextValue — значение поля ввода модалки по custom_id.
func (d *InteractionData) TextValue(customID string) string {
	for _, row := range d.Components {
		for _, c := range row.Components {
			if c.CustomID == customID {
				return c.Value
			}
		}
	}
	return ""
}

// Option — опция слэш-команды по имени.
func (d *InteractionData) Option(name string) (CommandOption, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return CommandOption{}, false
}

type CommandOption struct {
	Name    string          `json:"name"`
	Type    int             `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Options []CommandOption `json:"options,omitempty"`
}

// Int — целое значение опции.
func (o CommandOption) Int() (int, bool) {
	var n json.Number
	if err := json.Unmarshal(o.Value, &n); err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, false
	}
	return v, true
}

// String — строковое значение опции (для snowflake-опций тоже).
func (o CommandOption) String() string {
	var s string
	if err := json.Unmarshal(o.Value, &s); err == nil {
		return s
	}
	return string(o.Value)
}

// Типы ответа на взаимодействие.
const (
	ResponsePong               = 1
	ResponseChannelMessage     = 4
	ResponseDeferredChannelMsg = 5
	ResponseDeferredUpdateMsg  = 6
	ResponseUpdateMessage      = 7
	ResponseAutocompleteResult = 8
	ResponseModal              = 9
)

// FlagEphemeral — ответ видит только нажавший.
const FlagEphemeral = 1 << 6

type InteractionResponse struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

type ResponseData struct {
	Content    *string     `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Title      string      `json:"title,omitempty"`
}

// Text — указатель на строку для полей, где пустая строка значима.
func Text(s string) *string { return &s }

type MessageSend struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

type MessageEdit struct {
	Content    *string      `json:"content,omitempty"`
	Embeds     *[]Embed     `json:"embeds,omitempty"`
	Components *[]Component `json:"components,omitempty"`
}

// Типы опций слэш-команд.
const (
	OptionString  = 3
	OptionInteger = 4
	OptionChannel = 7
	OptionRole    = 8
)

type ApplicationCommand struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Options     []CommandOptionDef `json:"options,omitempty"`
}

type CommandOptionDef struct {
	Type        int            `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Required    bool           `json:"required,omitempty"`
	Choices     []OptionChoice `json:"choices,omitempty"`
}

type OptionChoice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}
