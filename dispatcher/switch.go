package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/ext"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

var _ Dispatcher = (*Switch)(nil)

// Switch routes each enqueue to the Broker or the Inline fallback. The
// mode is read once per enqueue, so a switch never splits a request.
type Switch struct {
	broker     *Broker
	inline     *Inline
	extensions *ext.Registry
	logger     *slog.Logger

	// mu serializes transitions so each one is logged and emitted once.
	mu   sync.Mutex
	mode atomic.Value // job.Mode
}

// NewSwitch creates a Switch in broker mode.
func NewSwitch(broker *Broker, inline *Inline, opts ...Option) *Switch {
	o := buildOptions(opts)
	s := &Switch{
		broker:     broker,
		inline:     inline,
		extensions: o.extensions,
		logger:     o.logger,
	}
	s.mode.Store(job.ModeBroker)
	return s
}

// Mode returns the current mode.
func (s *Switch) Mode() job.Mode { return s.mode.Load().(job.Mode) }

// SetMode switches to mode and reports whether it changed. cause is the
// failure behind a switch to fallback.
func (s *Switch) SetMode(ctx context.Context, mode job.Mode, cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.Mode()
	if from == mode {
		return false
	}
	s.mode.Store(mode)

	attrs := []any{slog.String("from", string(from)), slog.String("to", string(mode))}
	if cause != nil {
		s.logger.Warn("dispatcher switched to fallback mode", append(attrs, slog.String("error", cause.Error()))...)
	} else {
		s.logger.Info("dispatcher switched mode", attrs...)
	}
	s.extensions.EmitModeChanged(ctx, from, mode, cause)
	return true
}

// Enqueue validates the request and hands it to the current mode. A broker
// that fails to accept the job flips the Switch to fallback and the job
// runs inline.
func (s *Switch) Enqueue(ctx context.Context, queueName, jobType string, payload []byte, opts ...job.Option) (*Handle, error) {
	if _, _, err := s.broker.validate(queueName, jobType); err != nil {
		return nil, err
	}

	if s.Mode() == job.ModeBroker {
		h, err := s.broker.Enqueue(ctx, queueName, jobType, payload, opts...)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, escrow.ErrBrokerUnavailable) {
			return nil, err
		}
		s.SetMode(ctx, job.ModeFallback, err)
	}
	return s.inline.Enqueue(ctx, queueName, jobType, payload, opts...)
}

// Cancel removes a waiting broker job. Fallback jobs have already run.
func (s *Switch) Cancel(ctx context.Context, jobID id.JobID) error {
	err := s.broker.Cancel(ctx, jobID)
	if !errors.Is(err, escrow.ErrJobNotFound) {
		return err
	}
	if _, ferr := s.inline.Job(ctx, jobID); ferr == nil {
		return escrow.ErrInvalidState
	}
	return err
}

// Job looks a job up in the broker, then in the fallback record.
func (s *Switch) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := s.broker.Job(ctx, jobID)
	if err == nil || !errors.Is(err, escrow.ErrJobNotFound) {
		return j, err
	}
	return s.inline.Job(ctx, jobID)
}

// Broker returns the broker dispatcher.
func (s *Switch) Broker() *Broker { return s.broker }

// Inline returns the fallback dispatcher.
func (s *Switch) Inline() *Inline { return s.inline }
