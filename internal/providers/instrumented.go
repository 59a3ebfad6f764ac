package providers

import (
	"context"
	"fmt"
	"time"

	dserrors "github.com/ashebanow/secretspec/internal/errors"
	"github.com/ashebanow/secretspec/internal/logging"
	"github.com/ashebanow/secretspec/internal/metrics"
	"github.com/ashebanow/secretspec/pkg/provider"
	"github.com/ashebanow/secretspec/pkg/secure"
)

// Instrumented decorates a provider with debug logging, metrics and
// user-facing error wrapping. Keys are logged; values never are.
type Instrumented struct {
	inner    provider.Provider
	logger   *logging.Logger
	recorder *metrics.Recorder
}

var _ provider.FieldProvider = (*Instrumented)(nil)

// Instrument wraps p. Both logger and recorder may be nil.
func Instrument(p provider.Provider, logger *logging.Logger, recorder *metrics.Recorder) *Instrumented {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Instrumented{inner: p, logger: logger, recorder: recorder}
}

func (i *Instrumented) Name() string    { return i.inner.Name() }
func (i *Instrumented) AllowsSet() bool { return i.inner.AllowsSet() }

func (i *Instrumented) Get(ctx context.Context, project, key, profile string) (*secure.String, bool, error) {
	return i.GetField(ctx, project, key, profile, "")
}

func (i *Instrumented) Set(ctx context.Context, project, key string, value *secure.String, profile string) error {
	return i.SetField(ctx, project, key, value, profile, "")
}

// GetField reads through the inner provider. A non-empty field requires the
// inner provider to implement provider.FieldProvider.
func (i *Instrumented) GetField(ctx context.Context, project, key, profile, field string) (*secure.String, bool, error) {
	start := time.Now()
	i.logger.Debug("get %s/%s (profile %s) from %s", project, key, profile, i.Name())

	var (
		value *secure.String
		found bool
		err   error
	)
	switch fp, ok := i.inner.(provider.FieldProvider); {
	case ok:
		value, found, err = fp.GetField(ctx, project, key, profile, field)
	case field != "":
		err = i.fieldUnsupported(field)
	default:
		value, found, err = i.inner.Get(ctx, project, key, profile)
	}

	result := metrics.ResultHit
	switch {
	case err != nil:
		result = metrics.ResultError
	case !found:
		result = metrics.ResultMiss
	}
	i.recorder.Observe(i.Name(), "get", result, time.Since(start))
	i.logger.Debug("get %s/%s from %s: %s in %s", project, key, i.Name(), result, time.Since(start).Round(time.Millisecond))

	if err != nil {
		return nil, false, dserrors.ProviderError(i.Name(), "get", err)
	}
	return value, found, nil
}

// SetField writes through the inner provider.
func (i *Instrumented) SetField(ctx context.Context, project, key string, value *secure.String, profile, field string) error {
	start := time.Now()
	i.logger.Debug("set %s/%s (profile %s) in %s", project, key, profile, i.Name())

	var err error
	switch fp, ok := i.inner.(provider.FieldProvider); {
	case ok:
		err = fp.SetField(ctx, project, key, value, profile, field)
	case field != "":
		err = i.fieldUnsupported(field)
	default:
		err = i.inner.Set(ctx, project, key, value, profile)
	}

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	i.recorder.Observe(i.Name(), "set", result, time.Since(start))
	i.logger.Debug("set %s/%s in %s: %s in %s", project, key, i.Name(), result, time.Since(start).Round(time.Millisecond))

	if err != nil {
		return dserrors.ProviderError(i.Name(), "set", err)
	}
	return nil
}

func (i *Instrumented) fieldUnsupported(field string) error {
	return dserrors.ConfigError{
		Field:      "field",
		Value:      field,
		Message:    fmt.Sprintf("provider %s does not support field selection", i.Name()),
		Suggestion: "Remove --field or use a bitwarden:// provider",
	}
}
