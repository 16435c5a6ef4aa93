package docker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// containerHost starts and removes idle sandbox containers. The Docker
// implementation is dockerHost; tests use a fake.
type containerHost interface {
	start(ctx context.Context, image string) (string, error)
	remove(ctx context.Context, id string) error
}

// Pool keeps size containers of one image running and idle so a request
// only pays for an exec, not a container start. Containers are single-use:
// the caller removes what it takes.
type Pool struct {
	host       containerHost
	language   string
	image      string
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	retryAfter time.Duration

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPool(host containerHost, language, image string, size int, logger *slog.Logger) *Pool {
	return &Pool{
		host:       host,
		language:   language,
		image:      image,
		logger:     logger.With(slog.String("language", language)),
		containers: make(chan string, size),
		done:       make(chan struct{}),
		retryAfter: time.Second,
	}
}

// Start launches the refill loop. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting container pool", slog.Int("poolSize", cap(p.containers)))
		p.wg.Add(1)
		go p.refill()
	})
}

// Stop ends the refill loop and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.remove(id)
			default:
				return
			}
		}
	})
}

// GetContainer blocks until a warm container is free or ctx is done.
func (p *Pool) GetContainer(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refill starts containers and parks them in the channel. The send blocks
// while the pool is full, so one extra container may wait for a slot.
func (p *Pool) refill() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		id, err := p.host.start(ctx, p.image)
		cancel()
		if err != nil {
			p.logger.Error("failed to start warm container", slog.String("error", err.Error()))
			select {
			case <-p.done:
				return
			case <-time.After(p.retryAfter):
				continue
			}
		}

		select {
		case p.containers <- id:
		case <-p.done:
			p.remove(id)
			return
		}
	}
}

func (p *Pool) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.host.remove(ctx, id); err != nil {
		p.logger.Warn("failed to remove container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
