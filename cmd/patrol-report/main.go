package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/joelkehle/patrol-report/internal/compose"
	"github.com/joelkehle/patrol-report/internal/config"
	"github.com/joelkehle/patrol-report/internal/httpapi"
	"github.com/joelkehle/patrol-report/internal/observability"
	"github.com/joelkehle/patrol-report/internal/publish"
	"github.com/joelkehle/patrol-report/internal/reminder"
	"github.com/joelkehle/patrol-report/internal/share"
	"github.com/joelkehle/patrol-report/internal/statestore"
	"github.com/joelkehle/patrol-report/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		addr   = flag.String("addr", cfg.HTTPAddr, "Listen address")
		webDir = flag.String("web-dir", cfg.WebDir, "Directory containing web UI files (default: web/ relative to binary)")
	)
	flag.Parse()

	web := *webDir
	if web == "" {
		exe, _ := os.Executable()
		web = filepath.Join(filepath.Dir(exe), "..", "..", "web")
		if _, err := os.Stat(web); err != nil {
			web = "web"
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, "patrol-report", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	state, err := statestore.Open(cfg.StateBackend, cfg.StatePath())
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}
	defer state.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	var publisher publish.Publisher = publish.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = publish.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("publishing reports to kafka topic=%s brokers=%v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}
	defer publisher.Close()

	var gen compose.TextGenerator
	if g, err := compose.NewAnthropicGeneratorWithKey(cfg.AnthropicAPIKey, cfg.ReportModel); err != nil {
		log.Printf("warning: %v; report generation will fail until it is set", err)
	} else {
		gen = g
		log.Printf("report generator model=%s", g.Model())
	}
	composer := compose.NewComposer(gen, state,
		compose.WithPublisher(publisher),
		compose.WithMetrics(metrics),
	)

	var notifier reminder.Notifier = reminder.LogNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = reminder.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret)
	}
	scheduler := reminder.NewScheduler(state, notifier,
		reminder.WithLocation(cfg.ReminderLocation),
		reminder.WithMetrics(metrics),
	)
	go scheduler.Run(ctx)

	sessions := wizard.NewSessionStore(nil)
	go sessions.SweepLoop(ctx, cfg.SessionTTL, time.Minute)

	handler := httpapi.NewServer(httpapi.Config{
		Sessions:           sessions,
		Composer:           composer,
		Reminder:           scheduler,
		PDFRenderer:        share.NewPDFRenderer(web),
		Metrics:            metrics,
		Gatherer:           reg,
		GenerateRatePerMin: cfg.GenerateRatePerMin,
		WebDir:             web,
	})

	log.Printf("patrol-report listening on %s (state=%s web=%s)", *addr, cfg.StateBackend, web)
	srv := &http.Server{Addr: *addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
	log.Printf("patrol-report stopped")
}
