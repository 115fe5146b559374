package middleware

import (
	"strings"

	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/platform"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageCallbackPrefix prefixes the payload of language selection buttons.
const LanguageCallbackPrefix = "lang_"

const (
	defaultLanguagePrompt = "Please select your language:"
	languageButtonsPerRow = 2
)

// LanguageOption tunes Language.
type LanguageOption func(*languageSelector)

// WithLanguagePrompt replaces the text sent with the language keyboard.
func WithLanguagePrompt(text string) LanguageOption {
	return func(l *languageSelector) {
		if strings.TrimSpace(text) != "" {
			l.prompt = text
		}
	}
}

// WithClientLanguage adopts the language reported by the user's client when
// it matches a supported language closely, instead of prompting.
func WithClientLanguage() LanguageOption {
	return func(l *languageSelector) {
		l.fromClient = true
	}
}

type languageSelector struct {
	supported  []language.Tag
	matcher    language.Matcher
	prompt     string
	fromClient bool
}

// Language resolves the locale of each update from the session and asks users
// without a language to pick one.
//
// It must run inside Session. A session language is matched against the
// supported list and stored with Context.SetLocale. Sessions without a
// language get an inline keyboard with one "lang_<tag>" button per supported
// language on message updates; the update still continues down the pipeline.
// Presses of those buttons are consumed here: the session language is set,
// the callback answered and the update marked handled.
func Language(supported []language.Tag, opts ...LanguageOption) dispatch.Middleware {
	l := &languageSelector{
		supported: supported,
		matcher:   language.NewMatcher(supported),
		prompt:    defaultLanguagePrompt,
	}
	for _, opt := range opts {
		opt(l)
	}

	return dispatch.MiddlewareFunc(l.invoke)
}

func (l *languageSelector) invoke(c *dispatch.Context, next dispatch.Next) error {
	s := c.Session()
	if s == nil || len(l.supported) == 0 {
		return next()
	}

	if data, err := c.CallbackData(); err == nil && hasFoldPrefix(data, LanguageCallbackPrefix) {
		return l.choose(c, data[len(LanguageCallbackPrefix):])
	}

	if s.Language != "" {
		if tag, ok := l.match(s.Language); ok {
			c.SetLocale(tag)
		}
		return next()
	}

	if l.fromClient {
		if user, ok := c.Update().Sender(); ok && user.LanguageCode != "" {
			if tag, ok := l.match(user.LanguageCode); ok {
				s.Language = tag.String()
				c.SetLocale(tag)
				return next()
			}
		}
	}

	if c.Update().Kind == platform.KindMessage {
		if err := c.Reply(l.prompt, dispatch.WithKeyboard(l.keyboard())); err != nil {
			return err
		}
	}

	return next()
}

func (l *languageSelector) choose(c *dispatch.Context, code string) error {
	c.MarkHandled()

	tag, ok := l.match(code)
	if !ok {
		return c.AnswerWith(platform.AnswerOptions{Text: "Unsupported language", ShowAlert: true})
	}

	c.Session().Language = tag.String()
	c.SetLocale(tag)

	return c.Answer("✅ " + languageName(tag))
}

// match returns the supported tag for code when the match is at least highly
// confident.
func (l *languageSelector) match(code string) (language.Tag, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}

	_, index, confidence := l.matcher.Match(tag)
	if confidence < language.High || index < 0 || index >= len(l.supported) {
		return language.Und, false
	}

	return l.supported[index], true
}

func (l *languageSelector) keyboard() *platform.InlineKeyboard {
	kb := &platform.InlineKeyboard{}
	var row []platform.InlineButton
	for _, tag := range l.supported {
		row = append(row, platform.InlineButton{
			Text: flagEmoji(tag) + " " + languageName(tag),
			Data: LanguageCallbackPrefix + tag.String(),
		})
		if len(row) == languageButtonsPerRow {
			kb.Rows = append(kb.Rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Rows = append(kb.Rows, row)
	}

	return kb
}

// languageName returns the language's name in itself, e.g. "Français".
func languageName(tag language.Tag) string {
	base, _ := tag.Base()
	if name := display.Self.Name(language.Make(base.String())); name != "" {
		return cases.Title(tag).String(name)
	}

	return tag.String()
}

// flagEmoji renders the tag's region as a regional-indicator flag.
func flagEmoji(tag language.Tag) string {
	region, confidence := tag.Region()
	code := region.String()
	if confidence < language.High || !region.IsCountry() || len(code) != 2 {
		return "🏳️"
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// ParseLanguages parses BCP 47 codes, skipping blanks and reporting the first
// invalid one.
func ParseLanguages(codes []string) ([]language.Tag, error) {
	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		tag, err := language.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, nil
}
