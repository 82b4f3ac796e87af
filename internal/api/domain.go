package api

import (
	"github.com/practicanteticPX/docuprex/internal/config"
	"github.com/practicanteticPX/docuprex/internal/documents"
	"github.com/practicanteticPX/docuprex/internal/notifications"
	"github.com/practicanteticPX/docuprex/internal/reports"
	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/internal/users"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents     documents.System
	Users         users.System
	Signing       signing.System
	Notifications notifications.System
	Reports       reports.System
}

// NewDomain creates all domain systems from the API runtime and registers the
// effect handlers the signing engine dispatches to after each commit.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	docsSystem := documents.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	usersSystem := users.New(db, runtime.Logger, runtime.Pagination)

	store := signing.NewStore(db)
	engine := signing.New(store, runtime.Logger, cfg.Notify.DispatchTimeoutDuration())

	notifySystem := notifications.New(
		notifications.NewRepository(db),
		store,
		newSender(cfg, runtime),
		runtime.Cache,
		notifications.Config{
			Workers:       cfg.Notify.Workers,
			RatePerSecond: cfg.Notify.RatePerSecond,
			Burst:         cfg.Notify.Burst,
			DedupeWindow:  cfg.Notify.DedupeWindowDuration(),
			ReminderAfter: cfg.Notify.ReminderAfterDuration(),
			SweepInterval: cfg.Notify.SweepIntervalDuration(),
			AppURL:        cfg.Mail.AppURL,
		},
		runtime.Pagination,
		runtime.Logger,
	)

	reportsSystem := reports.New(runtime.Storage, docsSystem, store, runtime.Logger)

	engine.Register("notifications", notifySystem)
	engine.Register("reports", reportsSystem)
	engine.Register("broadcast", signing.Broadcaster(runtime.Broadcaster))

	return &Domain{
		Documents:     docsSystem,
		Users:         usersSystem,
		Signing:       engine,
		Notifications: notifySystem,
		Reports:       reportsSystem,
	}
}

func newSender(cfg *config.Config, runtime *Runtime) notifications.Sender {
	if !cfg.Mail.Enabled {
		runtime.Logger.Warn("mail disabled, notifications are logged only")
		return notifications.NewLogSender(runtime.Logger)
	}
	return notifications.NewSMTPSender(notifications.MailConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		TLS:      cfg.Mail.TLS,
	})
}
