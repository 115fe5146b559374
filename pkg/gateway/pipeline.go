package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"chatrouter/pkg/config"
	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/middleware"
	"chatrouter/pkg/session"
)

// newStore builds the session store described by cfg.Sessions.
func newStore(cfg config.SessionsConfig) *session.MemoryStore {
	return session.NewMemoryStore(
		session.WithTTL(time.Duration(cfg.TTLMinutes)*time.Minute),
		session.WithMaxEntries(cfg.MaxEntries),
	)
}

// buildRouter indexes module and assembles the middleware pipeline.
//
// Order, outermost first: recovery, logging, allow list, session, language
// selection, then extra middleware. Per-chat ordering is done by the worker
// pool, not by middleware.
func buildRouter(cfg *config.Config, module dispatch.Module, store session.Store, services *dispatch.Services, extra []dispatch.Middleware, log *slog.Logger) (*dispatch.Router, error) {
	registry, err := dispatch.NewRegistry(module, log)
	if err != nil {
		return nil, fmt.Errorf("build route registry: %w", err)
	}

	opts := []dispatch.Option{dispatch.WithLogger(log)}
	if services != nil {
		opts = append(opts, dispatch.WithServices(services))
	}
	if cfg.Router.EditedMessages {
		opts = append(opts, dispatch.WithEditedMessages())
	}

	router, err := dispatch.New(registry, opts...)
	if err != nil {
		return nil, err
	}

	router.Use(middleware.Recover(log), middleware.Logging(log))
	if len(cfg.Router.AllowFrom) > 0 {
		var allowOpts []middleware.AllowOption
		if cfg.Router.DenyReply != "" {
			allowOpts = append(allowOpts, middleware.WithDenyReply(cfg.Router.DenyReply))
		}
		router.Use(middleware.AllowFrom(cfg.Router.AllowFrom, allowOpts...))
	}
	router.Use(middleware.Session(store))

	if len(cfg.I18n.Languages) > 0 {
		languages, err := middleware.ParseLanguages(cfg.I18n.Languages)
		if err != nil {
			return nil, fmt.Errorf("parse i18n.languages: %w", err)
		}

		var langOpts []middleware.LanguageOption
		if cfg.I18n.Prompt != "" {
			langOpts = append(langOpts, middleware.WithLanguagePrompt(cfg.I18n.Prompt))
		}
		if cfg.I18n.FromClient {
			langOpts = append(langOpts, middleware.WithClientLanguage())
		}
		router.Use(middleware.Language(languages, langOpts...))
	}

	router.Use(extra...)

	return router, nil
}
