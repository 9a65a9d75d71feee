package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/jwalitptl/hms/internal/client"
	"github.com/jwalitptl/hms/internal/model"
	"github.com/jwalitptl/hms/internal/notify"
	"github.com/jwalitptl/hms/pkg/errors"
)

type (
	LabStore  = Store[model.LabRecord, model.LabDraft, model.LabUpdate]
	XrayStore = Store[model.XrayRecord, model.XrayDraft, model.XrayUpdate]
)

// App is the application state: one store per domain, all sharing the
// API client and the notifier.
type App struct {
	Users   *UserStore
	Labs    *LabStore
	Xrays   *XrayStore
	WalkIns *XrayStore

	api      *client.Client
	notifier notify.Notifier
	logger   *zap.Logger
}

func NewApp(api *client.Client, notifier notify.Notifier, logger *zap.Logger) *App {
	app := &App{
		Users:    newUserStore(api, notifier, logger),
		Labs:     New[model.LabRecord, model.LabDraft, model.LabUpdate]("Lab record", api.Labs(), notifier, logger),
		Xrays:    New[model.XrayRecord, model.XrayDraft, model.XrayUpdate]("X-ray record", api.Xrays(), notifier, logger),
		WalkIns:  New[model.XrayRecord, model.XrayDraft, model.XrayUpdate]("Walk-in record", api.WalkIns(), notifier, logger),
		api:      api,
		notifier: notifier,
		logger:   logger,
	}

	app.Labs.prepare = func(d *model.LabDraft) error {
		if d.PatientUniqueID != "" {
			return nil
		}
		p := app.Users.Patient()
		if p == nil {
			return ErrNoPatient
		}
		d.ForPatient(p)
		return nil
	}
	app.Xrays.prepare = func(d *model.XrayDraft) error {
		d.WalkIn = false
		if d.PatientUniqueID != "" {
			return nil
		}
		p := app.Users.Patient()
		if p == nil {
			return ErrNoPatient
		}
		d.ForPatient(p)
		return nil
	}
	app.WalkIns.prepare = func(d *model.XrayDraft) error {
		d.WalkIn = true
		return nil
	}
	return app
}

// Logout ends the session and empties every store.
func (a *App) Logout(ctx context.Context) Result[string] {
	res := a.Users.Logout(ctx)
	a.Labs.Reset()
	a.Xrays.Reset()
	a.WalkIns.Reset()
	return res
}

// WalkInStatistics fetches the dataset-wide walk-in counters. It returns
// nil on failure.
func (a *App) WalkInStatistics(ctx context.Context) *model.WalkInStatistics {
	stats, err := a.api.WalkIns().Statistics(ctx)
	if err != nil {
		msg := Message(err)
		a.logger.Debug("Walk-in statistics failed", zap.Error(err))
		a.notifier.Notify(notify.Notice{Level: notify.LevelError, Message: msg})
		return nil
	}
	return stats
}

// LabReport loads the complete record a printed lab report needs.
func (a *App) LabReport(ctx context.Context, id string) (*model.LabRecord, error) {
	rec := a.Labs.GetByID(ctx, id)
	if rec == nil {
		return nil, errors.NotFound("Lab record", nil)
	}
	return rec, nil
}

// XrayReport loads the complete record a printed x-ray report needs.
func (a *App) XrayReport(ctx context.Context, id string, walkIn bool) (*model.XrayRecord, error) {
	s := a.Xrays
	if walkIn {
		s = a.WalkIns
	}
	rec := s.GetByID(ctx, id)
	if rec == nil {
		return nil, errors.NotFound("X-ray record", nil)
	}
	return rec, nil
}
