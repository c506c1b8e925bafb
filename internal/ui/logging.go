package ui

import (
	"bytes"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// logQueueSize is the amount of log records held while the browser is busy.
const logQueueSize = 100

// LogMsg is a single log record, without its trailing newline, delivered to
// the browser as a [tea.Msg].
type LogMsg string

type teaProgramProvider interface {
	Send(msg tea.Msg)
}

// TeaLogWriter is the [io.Writer] behind the log handler used while the
// browser is shown; warnings of the containment guard end up in its logs
// panel. Each call to [TeaLogWriter.Write] is expected to carry one record,
// as a [slog.Handler] writes them.
//
// Records are queued and never block the caller. When the queue is full they
// are dropped and counted instead.
type TeaLogWriter struct {
	program teaProgramProvider
	queue   chan LogMsg
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewTeaLogWriter returns a pointer to a new [TeaLogWriter] delivering to a
// program until [TeaLogWriter.Stop] is called.
func NewTeaLogWriter(program teaProgramProvider) *TeaLogWriter {
	wr := &TeaLogWriter{
		program: program,
		queue:   make(chan LogMsg, logQueueSize),
		done:    make(chan struct{}),
	}

	go wr.deliver()

	return wr
}

// Stop ends the delivery. Records written afterwards are discarded. It is
// safe to call more than once.
func (wr *TeaLogWriter) Stop() {
	wr.once.Do(func() {
		close(wr.done)
	})
}

// Dropped returns the amount of records lost to a full queue.
func (wr *TeaLogWriter) Dropped() uint64 {
	return wr.dropped.Load()
}

func (wr *TeaLogWriter) deliver() {
	for {
		select {
		case <-wr.done:
			return
		case msg := <-wr.queue:
			select {
			case <-wr.done:
				return
			default:
				wr.program.Send(msg)
			}
		}
	}
}

// Write queues a record for the program.
func (wr *TeaLogWriter) Write(p []byte) (int, error) {
	msg := LogMsg(bytes.TrimSuffix(p, []byte("\n")))

	select {
	case <-wr.done:
		return len(p), nil
	default:
	}

	select {
	case wr.queue <- msg:
	default:
		wr.dropped.Add(1)
	}

	return len(p), nil
}
