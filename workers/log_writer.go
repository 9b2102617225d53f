// workers/log_writer.go
package workers

import (
	"context"
	"log"
	"sync"
)

// ObjectStore is the slice of the storage client the writer needs.
type ObjectStore interface {
	FetchObject(ctx context.Context, key string) ([]byte, bool, error)
	PutObject(ctx context.Context, key, contentType string, body []byte) error
}

type appendReq struct {
	ctx    context.Context
	header string
	line   string
	done   chan error
}

// LogWriterPool serializes appends to object-storage logs. The store only
// offers fetch + overwrite, so two concurrent appenders to the same key
// would silently drop one line; routing every append for a key through a
// single goroutine removes that race in-process.
type LogWriterPool struct {
	ctx   context.Context
	store ObjectStore

	mu      sync.Mutex
	writers map[string]chan appendReq
}

// NewLogWriterPool builds a pool whose writer goroutines stop when ctx is
// cancelled.
func NewLogWriterPool(ctx context.Context, store ObjectStore) *LogWriterPool {
	return &LogWriterPool{
		ctx:     ctx,
		store:   store,
		writers: make(map[string]chan appendReq),
	}
}

// Append adds one line to the object at key, creating it with header when
// absent. Blocks until the write settles; the error is the fetch/upload
// error, if any. Safe for concurrent use across any number of keys.
func (p *LogWriterPool) Append(ctx context.Context, key, header, line string) error {
	req := appendReq{ctx: ctx, header: header, line: line, done: make(chan error, 1)}

	select {
	case p.writer(key) <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		// Pool shut down while the request was queued. The caller must not
		// hang on a writer that will never pick the request up.
		return p.ctx.Err()
	}
}

func (p *LogWriterPool) writer(key string) chan appendReq {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.writers[key]
	if !ok {
		ch = make(chan appendReq, 64)
		p.writers[key] = ch
		go p.run(key, ch)
	}
	return ch
}

func (p *LogWriterPool) run(key string, ch chan appendReq) {
	for {
		select {
		case req := <-ch:
			req.done <- p.append(req.ctx, key, req.header, req.line)
		case <-p.ctx.Done():
			p.drain(ch)
			log.Printf("⏹️ log writer stopped: %s", key)
			return
		}
	}
}

// drain fails any requests still queued at shutdown so their callers unblock.
func (p *LogWriterPool) drain(ch chan appendReq) {
	for {
		select {
		case req := <-ch:
			req.done <- p.ctx.Err()
		default:
			return
		}
	}
}

// append is the read-modify-upload cycle. Only ever called from the one
// goroutine owning key.
func (p *LogWriterPool) append(ctx context.Context, key, header, line string) error {
	body, exists, err := p.store.FetchObject(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		body = []byte(header + "\n")
	}
	body = append(body, []byte(line+"\n")...)
	return p.store.PutObject(ctx, key, "text/csv", body)
}
