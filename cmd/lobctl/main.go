// Command lobctl replays a CSV quote file against a single-instrument
// limit order book, driven by a configured trading-phase schedule, and
// reports the resulting transactions and ticks.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/lobengine/internal/config"
	"github.com/abdoElHodaky/lobengine/internal/feed"
	"github.com/abdoElHodaky/lobengine/internal/lob"
	"github.com/abdoElHodaky/lobengine/internal/transport/wsfeed"
)

const (
	appName    = "lobctl"
	appVersion = "v0.1.0"
)

// params bundles the CLI flags every constructor below needs.
type params struct {
	configPath  string
	csvPath     string
	metricsAddr string
	wsAddr      string
}

func main() {
	var p params
	var version bool
	flag.StringVar(&p.configPath, "config", "config.yaml", "path to the book's YAML configuration")
	flag.StringVar(&p.csvPath, "replay", "", "path to a CSV (optionally .gz) quote file to replay")
	flag.StringVar(&p.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address instead of exiting after replay")
	flag.StringVar(&p.wsAddr, "ws-addr", "", "if set, broadcast replayed transactions and ticks over websocket on this address")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}
	if p.csvPath == "" {
		fmt.Fprintln(os.Stderr, "lobctl: -replay is required")
		os.Exit(2)
	}

	app := fx.New(
		fx.Supply(p),
		fx.Provide(
			newLogger,
			newRegistry,
			newConfig,
			newMetrics,
			newBook,
			newSource,
			newDispatcher,
			newHub,
		),
		fx.Invoke(runReplay, serveMetrics, serveWebsocket),
	)
	app.Run()
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newConfig(p params) (*config.Config, error) {
	return config.Load(p.configPath)
}

func newMetrics(reg *prometheus.Registry) *lob.Metrics {
	return lob.NewMetrics(reg, "lobengine")
}

func newBook(cfg *config.Config, logger *zap.Logger, metrics *lob.Metrics) (*lob.Book, error) {
	bc := cfg.BookConfig()
	bc.Logger = logger
	bc.Metrics = metrics
	book := lob.NewBook(bc)
	schedule, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	book.SetSchedule(schedule)
	return book, nil
}

func newSource(p params, book *lob.Book, logger *zap.Logger) (*feed.CSVSource, error) {
	return feed.NewCSVSource(p.csvPath, book, feed.WithLogger(logger))
}

func newDispatcher(logger *zap.Logger) (*feed.Dispatcher, error) {
	return feed.NewDispatcher(8, logger)
}

func newHub(logger *zap.Logger) *wsfeed.Hub {
	return wsfeed.NewHub(logger)
}

// runReplay drives the book across its schedule against the CSV
// source, then fans every transaction and tick out through the
// dispatcher. The replay runs in a goroutine started from an fx
// lifecycle hook and shuts the app down when it finishes, unless
// -metrics-addr is set, in which case the process keeps serving metrics
// until it is stopped.
func runReplay(lc fx.Lifecycle, p params, book *lob.Book, source *feed.CSVSource, dispatcher *feed.Dispatcher, logger *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer source.Close()
				defer dispatcher.Close()

				hooks := lob.Hooks{
					OnPeriodStart: func(period lob.Period) {
						logger.Info("period started", zap.String("status", period.Status.String()))
					},
					OnPeriodEnd: func(period lob.Period) {
						logger.Info("period ended", zap.String("status", period.Status.String()))
					},
				}
				if err := book.Run(source, hooks); err != nil {
					logger.Error("replay failed", zap.Error(err))
				}
				for _, tx := range book.Transactions() {
					dispatcher.DispatchTransaction(tx)
				}
				for _, tk := range book.Ticks() {
					dispatcher.DispatchTick(tk)
				}
				logger.Info("replay complete",
					zap.String("session_id", source.SessionID()),
					zap.String("file_digest", source.FileDigest()),
					zap.Int("transactions", len(book.Transactions())),
					zap.Int("ticks", len(book.Ticks())),
				)
				if p.metricsAddr == "" {
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
	})
}

// serveMetrics optionally exposes the Prometheus registry over HTTP,
// when -metrics-addr is set, instead of letting the process exit the
// instant the replay finishes.
func serveMetrics(lc fx.Lifecycle, p params, reg *prometheus.Registry, logger *zap.Logger) {
	if p.metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: p.metricsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// serveWebsocket optionally exposes a /ws endpoint that broadcasts
// every transaction and tick the replay produces, when -ws-addr is
// set. The hub is only wired into the dispatcher once its Run loop is
// actually draining the broadcast channel, or an unconsumed broadcast
// would eventually block the dispatcher's pool goroutines.
func serveWebsocket(lc fx.Lifecycle, p params, hub *wsfeed.Hub, dispatcher *feed.Dispatcher, logger *zap.Logger) {
	if p.wsAddr == "" {
		return
	}

	stop := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("wsfeed upgrade failed", zap.Error(err))
			return
		}
		client := wsfeed.NewClient(r.RemoteAddr, conn)
		hub.Register(client)
		go client.WritePump()
	})
	server := &http.Server{Addr: p.wsAddr, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(stop)
			dispatcher.AddTransactionSink(hub)
			dispatcher.AddTickSink(hub)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("wsfeed server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return server.Shutdown(ctx)
		},
	})
}
