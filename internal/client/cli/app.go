package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"

	"github.com/lskl-cc/souzou/internal/client/config"
	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/client/services"
	syncer "github.com/lskl-cc/souzou/internal/client/sync"
	"github.com/lskl-cc/souzou/internal/client/transport"
	"github.com/lskl-cc/souzou/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the local store, the sync manager and the record services behind
// an interactive command loop.
type App struct {
	config   *config.Config
	manager  *syncer.Manager
	entities services.EntityService
	tags     services.TagService
	reader   *bufio.Reader
	log      logging.Logger
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	factory := func(ctx context.Context) (*syncer.Deps, error) {
		d, err := driver.Open(ctx, driver.Backend(c.StorageBackend), c.DatabasePath)
		if err != nil {
			return nil, err
		}
		tr := transport.NewHTTPTransport(c.ServerEndpointAddr, c.AccessToken, c.RequestTimeout)
		orch := syncer.NewOrchestrator(d, tr, log)
		return &syncer.Deps{Driver: d, Transport: tr, Orchestrator: orch}, nil
	}

	manager := syncer.NewManager(factory, log)
	if err := manager.Initialize(ctx); err != nil {
		return nil, err
	}

	d, err := manager.Driver(ctx)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   c,
		manager:  manager,
		entities: services.NewEntityService(d, log),
		tags:     services.NewTagService(d, log),
		reader:   bufio.NewReader(os.Stdin),
		log:      log,
	}, nil
}

// Run starts the online-status watcher in the background and enters the
// command loop; it returns when the user quits or stdin closes.
func (a *App) Run(ctx context.Context) {
	w := syncer.NewWatcher(a.manager, a.config.OnlineCheckInterval, a.config.SyncEveryProbes, a.log)
	go w.Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, func() string { return string(a.manager.Status()) }, scanner)
}
