// Package demo is a small registration bot built on the dispatch router.
//
// It walks a user through age, name and country, keeps the answers in the
// chat session and shows the inline menu and fallbacks every rule kind needs.
package demo

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/platform"
	"chatrouter/pkg/session"
)

const (
	stateAskAge  = "ask_age"
	stateAskName = "ask_name"
	stateCountry = "ask_country"

	keyAge     = "age"
	keyName    = "name"
	keyCountry = "country"

	buttonRegister = "📝 Register"
	buttonInfo     = "ℹ️ Info"
	buttonHelp     = "❓ Help"
	buttonCancel   = "Cancel ❌"

	countryPrefix = "country_"
	optionPrefix  = "opt_"

	minAge     = 13
	maxAge     = 120
	minNameLen = 2

	parseMode = "Markdown"
)

var countries = map[string]string{
	"usa": "🇺🇸 United States",
	"uk":  "🇬🇧 United Kingdom",
	"de":  "🇩🇪 Germany",
	"fr":  "🇫🇷 France",
}

const otherCountry = "🌍 Other"

// Bot holds the demo handlers.
type Bot struct {
	log *slog.Logger
}

// New creates the demo bot. Register a Directory with dispatch.Provide so
// the registration handlers can bind it.
func New(log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}

	return &Bot{log: log.With("component", "demo.bot")}
}

// Services returns a capability map with an in-memory Directory.
func Services() *dispatch.Services {
	services := dispatch.NewServices()
	dispatch.Provide[Directory](services, NewMemoryDirectory())
	return services
}

// Routes implements dispatch.Module.
func (b *Bot) Routes() []dispatch.Route {
	return []dispatch.Route{
		dispatch.OnCommand(b.start, "start").Named("start"),
		dispatch.OnCommand(b.help, "help").AlsoText(dispatch.TextRule{Pattern: buttonHelp}).Named("help"),
		dispatch.OnCommand(dispatch.Handle2(b.register), "register").
			AlsoText(dispatch.TextRule{Pattern: buttonRegister}).Named("register"),
		dispatch.OnText(dispatch.Handle2(b.askAge), dispatch.TextRule{State: stateAskAge}).Named("ask_age"),
		dispatch.OnText(dispatch.Handle3(b.askName), dispatch.TextRule{State: stateAskName}).Named("ask_name"),
		dispatch.OnCallback(dispatch.Handle3(b.chooseCountry), countryPrefix+"*").Named("country"),
		dispatch.OnCommand(dispatch.Handle3(b.info), "info").AlsoText(dispatch.TextRule{Pattern: buttonInfo}).Named("info"),
		dispatch.OnCommand(b.menu, "menu").AlsoCallback("back_menu").Named("menu"),
		dispatch.OnCallback(b.option, optionPrefix+"*").Named("option"),
		dispatch.OnCallback(b.settings, "settings").Named("settings"),
		dispatch.OnText(dispatch.Handle2(b.cancel), dispatch.TextRule{Pattern: buttonCancel}).Named("cancel"),
		dispatch.OnCallback(b.unknownButton, "*").Named("unknown_button"),
		dispatch.OnText(b.echo, dispatch.TextRule{}).Named("echo"),
	}
}

func mainKeyboard() *platform.ReplyKeyboard {
	return &platform.ReplyKeyboard{
		Rows:   [][]string{{buttonRegister, buttonInfo}, {buttonHelp}},
		Resize: true,
	}
}

func (b *Bot) start(c *dispatch.Context) error {
	return c.Reply(
		"🤖 *Welcome to the demo bot!*\n\nChoose an option to get started:",
		dispatch.WithReplyKeyboard(mainKeyboard()),
		dispatch.WithParseMode(parseMode),
	)
}

func (b *Bot) help(c *dispatch.Context) error {
	return c.Reply(
		"📚 *Available Commands*\n\n"+
			"/start - Show main menu\n"+
			"/help - Show this message\n"+
			"/register - Start registration\n"+
			"/info - Show your info\n"+
			"/menu - Show inline menu",
		dispatch.WithParseMode(parseMode),
	)
}

func (b *Bot) register(c *dispatch.Context, s *session.Session) error {
	if s == nil {
		return c.Reply("❌ Registration needs a chat.")
	}
	s.State = stateAskAge

	return c.Reply(
		"👤 *Let's get you registered!*\n\nPlease enter your age:",
		dispatch.WithReplyKeyboard(&platform.ReplyKeyboard{Rows: [][]string{{buttonCancel}}, Resize: true, OneTime: true}),
		dispatch.WithParseMode(parseMode),
	)
}

func (b *Bot) askAge(c *dispatch.Context, msg *platform.Message) error {
	if msg.Text == buttonCancel {
		return b.cancel(c, c.Session())
	}

	age, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || age < minAge || age > maxAge {
		return c.Reply(fmt.Sprintf("❌ Please enter a valid age (%d-%d).", minAge, maxAge))
	}

	s := c.Session()
	if err := s.Set(keyAge, age); err != nil {
		return err
	}
	s.State = stateAskName

	return c.Reply("✅ Great! Now, what's your name?")
}

func (b *Bot) askName(c *dispatch.Context, msg *platform.Message, dir Directory) error {
	if msg.Text == buttonCancel {
		return b.cancel(c, c.Session())
	}

	name := strings.TrimSpace(msg.Text)
	if utf8.RuneCountInString(name) < minNameLen {
		return c.Reply(fmt.Sprintf("❌ Please enter a valid name (at least %d characters).", minNameLen))
	}

	s := c.Session()
	if err := s.Set(keyName, name); err != nil {
		return err
	}
	s.State = stateCountry

	if dir != nil && msg.From != nil {
		if err := dir.SetName(c.Context(), msg.From.ID, name); err != nil {
			return fmt.Errorf("remember name: %w", err)
		}
	}

	keyboard := &platform.InlineKeyboard{Rows: [][]platform.InlineButton{
		{{Text: "🇺🇸 USA", Data: "country_usa"}, {Text: "🇬🇧 UK", Data: "country_uk"}},
		{{Text: "🇩🇪 Germany", Data: "country_de"}, {Text: "🇫🇷 France", Data: "country_fr"}},
		{{Text: otherCountry, Data: "country_other"}},
	}}

	return c.Reply(fmt.Sprintf("Nice to meet you, %s! 👋\n\nWhere are you from?", name), dispatch.WithKeyboard(keyboard))
}

func (b *Bot) chooseCountry(c *dispatch.Context, cb *platform.CallbackQuery, s *session.Session) error {
	if s == nil {
		return c.Answer("Registration expired")
	}

	code := strings.TrimPrefix(strings.ToLower(cb.Data), countryPrefix)
	country, ok := countries[code]
	if !ok {
		country = otherCountry
	}

	if err := s.Set(keyCountry, country); err != nil {
		return err
	}
	s.State = ""

	if err := c.Answer(""); err != nil {
		return err
	}

	name, _ := s.String(keyName)
	age, _ := s.Int(keyAge)
	b.log.Info("Registration complete", "chat_id", cb.From.ID, "country", code)

	return c.Reply(
		"🎉 *Registration Complete!*\n\n"+
			"📋 Your Info:\n"+
			fmt.Sprintf("• Name: %s\n• Age: %d\n• Country: %s", name, age, country),
		dispatch.WithReplyKeyboard(mainKeyboard()),
		dispatch.WithParseMode(parseMode),
	)
}

func (b *Bot) info(c *dispatch.Context, s *session.Session, dir Directory) error {
	name, registered := "", false
	if s != nil {
		name, registered = s.String(keyName)
	}
	if !registered {
		if known, ok := b.knownName(c, dir); ok {
			return c.Reply(fmt.Sprintf("👋 Hi %s! Your details for this chat are gone.\n\nUse /register to fill them in again.", known))
		}
		return c.Reply("❌ You haven't registered yet!\n\nUse /register to get started.")
	}

	age, _ := s.Int(keyAge)
	country, ok := s.String(keyCountry)
	if !ok {
		country = "Not set"
	}

	return c.Reply(
		"📋 *Your Information*\n\n"+
			fmt.Sprintf("• Name: %s\n• Age: %d\n• Country: %s", name, age, country),
		dispatch.WithParseMode(parseMode),
	)
}

func (b *Bot) knownName(c *dispatch.Context, dir Directory) (string, bool) {
	user, ok := c.Update().Sender()
	if !ok || dir == nil {
		return "", false
	}

	return dir.Name(c.Context(), user.ID)
}

func (b *Bot) menu(c *dispatch.Context) error {
	if err := c.Answer(""); err != nil {
		return err
	}

	keyboard := &platform.InlineKeyboard{Rows: [][]platform.InlineButton{
		{{Text: "✅ Option 1", Data: "opt_1"}, {Text: "✅ Option 2", Data: "opt_2"}},
		{{Text: "⚙️ Settings", Data: "settings"}},
	}}

	return c.Reply("🔘 *Inline Menu*\n\nChoose an option:", dispatch.WithKeyboard(keyboard), dispatch.WithParseMode(parseMode))
}

func (b *Bot) option(c *dispatch.Context) error {
	data, err := c.CallbackData()
	if err != nil {
		return err
	}

	option := data[len(optionPrefix):]
	if err := c.Answer("You selected Option " + option); err != nil {
		return err
	}

	return c.Reply(fmt.Sprintf("✅ You selected Option %s!", option))
}

func (b *Bot) settings(c *dispatch.Context) error {
	if err := c.Answer(""); err != nil {
		return err
	}

	keyboard := &platform.InlineKeyboard{Rows: [][]platform.InlineButton{
		{{Text: "🔔 Notifications", Data: "set_notif"}, {Text: "🌐 Language", Data: "set_lang"}},
		{{Text: "🔙 Back", Data: "back_menu"}},
	}}

	return c.Reply("⚙️ *Settings*\n\nConfigure your preferences:", dispatch.WithKeyboard(keyboard), dispatch.WithParseMode(parseMode))
}

func (b *Bot) cancel(c *dispatch.Context, s *session.Session) error {
	if s != nil {
		s.Clear()
	}

	return c.Reply("❌ Operation cancelled.", dispatch.WithReplyKeyboard(mainKeyboard()))
}

func (b *Bot) unknownButton(c *dispatch.Context) error {
	return c.AnswerWith(platform.AnswerOptions{Text: "This button does nothing yet", ShowAlert: true})
}

func (b *Bot) echo(c *dispatch.Context) error {
	text, err := c.Text()
	if err != nil {
		return err
	}

	return c.Reply(fmt.Sprintf("📝 You said: _%s_\n\nUse /help to see available commands.", text), dispatch.WithParseMode(parseMode))
}

var (
	_ dispatch.Module = (*Bot)(nil)
	_ Directory       = (*MemoryDirectory)(nil)
)
