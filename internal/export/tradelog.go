package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// ErrTradeLogClosed is returned for trades that arrive after Close.
var ErrTradeLogClosed = errors.New("trade log closed")

// TradeLogOptions configures a TradeLog.
type TradeLogOptions struct {
	FlushInterval time.Duration // defaults to one second
	Clock         clock.Clock
}

// TradeLog appends every committed curve trade to a CSV file as it happens.
// Rows are buffered and flushed on a timer and on Close.
type TradeLog struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	closed  bool
	records uint64
	flushes uint64

	ticker    *clock.Ticker
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
	logger    *zap.Logger
}

// NewTradeLog opens path for appending. The header is written only when the
// file is new, so repeated runs extend one log.
func NewTradeLog(path string, opts TradeLogOptions, logger *zap.Logger) (*TradeLog, error) {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade log: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat trade log: %w", err)
	}

	l := &TradeLog{
		file:    file,
		writer:  csv.NewWriter(file),
		ticker:  opts.Clock.Ticker(opts.FlushInterval),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  logger.Named("trade_log").With(zap.String("file", path)),
	}
	if stat.Size() == 0 {
		err = l.writer.Write(CSVHeaders())
		if err == nil {
			l.writer.Flush()
			err = l.writer.Error()
		}
		if err != nil {
			l.ticker.Stop()
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	go l.flushLoop()
	return l, nil
}

// Record appends one committed trade. Subscribe it to the bus with
// events.On(log.Record) for TokensBought and TokensSold.
func (l *TradeLog) Record(_ context.Context, ev *events.TradeEvent) error {
	side := models.SideBuy
	if ev.Type() == events.TokensSold {
		side = models.SideSell
	}
	return l.write(tradeRecord(&models.Trade{
		Wrapper:       ev.Wrapper.String(),
		Trader:        ev.Trader.String(),
		Side:          side,
		WrapperAmount: ev.WrapperAmount.Dec(),
		BaseAmount:    ev.BaseAmount.Dec(),
		Fee:           ev.Fee.Dec(),
		PriceAfter:    ev.PriceAfter.Dec(),
		ReserveAfter:  ev.ReserveAfter.Dec(),
		ExecutedAt:    ev.Timestamp(),
	}))
}

func (l *TradeLog) write(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrTradeLogClosed
	}
	if err := l.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write trade: %w", err)
	}
	l.records++
	return nil
}

// Flush writes buffered rows through to disk.
func (l *TradeLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *TradeLog) flushLocked() error {
	if l.closed {
		return ErrTradeLogClosed
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("csv writer: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trade log: %w", err)
	}
	l.flushes++
	return nil
}

func (l *TradeLog) flushLoop() {
	defer close(l.stopped)
	for {
		select {
		case <-l.ticker.C:
			if err := l.Flush(); err != nil {
				l.logger.Error("Periodic flush failed", zap.Error(err))
			}
		case <-l.done:
			return
		}
	}
}

// Stats returns the number of trades written and flushes performed.
func (l *TradeLog) Stats() (records, flushes uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records, l.flushes
}

// Close stops the flush loop, flushes and closes the file. Safe to call more
// than once.
func (l *TradeLog) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.ticker.Stop()
		<-l.stopped

		l.mu.Lock()
		defer l.mu.Unlock()
		flushErr := l.flushLocked()
		l.closed = true
		l.closeErr = errors.Join(flushErr, l.file.Close())

		l.logger.Info("Trade log closed",
			zap.Uint64("records", l.records),
			zap.Uint64("flushes", l.flushes))
	})
	return l.closeErr
}
