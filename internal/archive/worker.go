package archive

import (
	"context"
	"log/slog"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// Worker decouples archiving from the request path. Enqueue never
// blocks; when the buffer is full the record is dropped with a log
// line rather than stalling a chat response.
type Worker struct {
	repo     Repository
	exporter Exporter
	queue    chan domain.ArchiveRecord
	done     chan struct{}
}

func NewWorker(repo Repository, exporter Exporter, bufferSize int) *Worker {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Worker{
		repo:     repo,
		exporter: exporter,
		queue:    make(chan domain.ArchiveRecord, bufferSize),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Enqueue(rec domain.ArchiveRecord) {
	select {
	case w.queue <- rec:
	default:
		slog.Warn("archive buffer full, record dropped", "request_id", rec.RequestID)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is
// already buffered and closes Done.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case rec := <-w.queue:
			w.process(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-w.queue:
					w.process(rec)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has flushed and returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) process(rec domain.ArchiveRecord) {
	// Background context: archiving outlives the originating request.
	ctx := context.Background()

	if w.repo != nil {
		if err := w.repo.Save(ctx, rec); err != nil {
			slog.Error("archive save failed", "request_id", rec.RequestID, "error", err)
		}
	}
	if w.exporter != nil {
		if err := w.exporter.Export(ctx, rec); err != nil {
			slog.Error("archive export failed", "request_id", rec.RequestID, "error", err)
		}
	}
}
