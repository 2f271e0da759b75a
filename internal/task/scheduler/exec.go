package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "puasapush/pkg/logx"
)

// fire is the cron callback. It drops the tick if the schedule is still running.
func (s *Service) fire(d scheduleDef) {
	if !d.state.tryAcquire() {
		s.log.Debug("schedule skipped (previous run still running)", logx.String("task", d.name))
		return
	}

	s.mu.Lock()
	parent := s.runCtx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	err := s.execOne(parent, d)
	d.state.release(err)
}

// execOne runs one job with its timeout. Panics are converted to errors so a
// bad run cannot take down the cron loop.
func (s *Service) execOne(parent context.Context, d scheduleDef) (err error) {
	start := time.Now()
	ctx := parent
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, d.timeout)
		defer cancel()
	}

	s.log.Debug("task started", logx.String("task", d.name))
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("task panic", logx.String("task", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		err = d.job(ctx)
	}()

	dur := time.Since(start)
	item := HistoryItem{ID: d.id, Name: d.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", d.name), logx.Duration("dur", dur), logx.Err(err))
	} else {
		s.log.Debug("task finished", logx.String("task", d.name), logx.Duration("dur", dur))
	}
	s.record(item)
	return err
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()
	if size <= 0 {
		size = 200
	}

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

// RunNow executes the named schedule immediately, honoring the skip-if-running
// rule. The job runs under ctx plus its timeout. It reports false when no such
// schedule exists or a run is in flight.
func (s *Service) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	var def *scheduleDef
	for i := range s.defs {
		if s.defs[i].name == name {
			d := s.defs[i]
			def = &d
			break
		}
	}
	s.mu.Unlock()

	if def == nil || !def.state.tryAcquire() {
		return false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.execOne(ctx, *def)
	def.state.release(err)
	return true, err
}
