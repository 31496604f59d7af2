package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "otc-settlement/internal/api/http"
	"otc-settlement/internal/auth"
	"otc-settlement/internal/blobstore"
	"otc-settlement/internal/config"
	"otc-settlement/internal/ingest"
	"otc-settlement/internal/mailbox/gmailapi"
	"otc-settlement/internal/matching"
	"otc-settlement/internal/monitor"
	"otc-settlement/internal/notify"
	"otc-settlement/internal/observability/metrics"
	payoutrepo "otc-settlement/internal/payout/infrastructure/postgres"
	"otc-settlement/internal/platform/payoutapi"
	"otc-settlement/internal/platform/tradeapi"
	receiptrepo "otc-settlement/internal/receipt/infrastructure/postgres"
	"otc-settlement/internal/receipt/parser"
	"otc-settlement/internal/settlement"
	transactionrepo "otc-settlement/internal/transaction/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	dsn := getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", ""))
	if dsn == "" {
		logger.Fatal("DATABASE_URL or PG_DSN is required")
	}
	jwtSecret := getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", ""))
	if jwtSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}
	httpAddr := getenvDefault("HTTP_ADDR", ":8080")

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	receipts := receiptrepo.NewReceiptRepository(db)
	payouts := payoutrepo.NewPayoutRepository(db)
	transactions := transactionrepo.NewTransactionRepository(db)

	blobs, err := blobstore.NewFileStore(cfg.StorageRoot)
	if err != nil {
		logger.Fatalf("blob store error: %v", err)
	}

	mail, err := gmailapi.NewClient(gmailapi.StaticTokenSource(cfg.GmailToken))
	if err != nil {
		logger.Fatalf("gmail client error: %v", err)
	}
	payoutClient, err := payoutapi.NewClient(cfg.PayoutBaseURL, cfg.PayoutAPIKey)
	if err != nil {
		logger.Fatalf("payout client error: %v", err)
	}
	tradeClient, err := tradeapi.NewClient(cfg.TradeBaseURL, cfg.TradeAPIKey)
	if err != nil {
		logger.Fatalf("trade client error: %v", err)
	}

	engine, err := matching.NewEngine(receipts, payouts, transactions, "", logger,
		matching.WithTolerance(int64(cfg.ToleranceRub)))
	if err != nil {
		logger.Fatalf("matching engine error: %v", err)
	}

	orchestratorOpts := []settlement.Option{settlement.WithGracePeriod(cfg.GracePeriod())}
	if cfg.ChatMessage != "" {
		orchestratorOpts = append(orchestratorOpts, settlement.WithChatText(cfg.ChatMessage))
	}
	orchestrator, err := settlement.NewOrchestrator(
		receipts, payouts, transactions,
		payoutClient, tradeClient, blobs,
		logger, orchestratorOpts...,
	)
	if err != nil {
		logger.Fatalf("orchestrator error: %v", err)
	}

	extractor := ingest.NewPDFToTextExtractor(cfg.PDFToTextPath)
	scanner, err := ingest.NewScanner(
		mail, cfg.Accounts, cfg.SenderFilter,
		receipts, blobs, extractor, parser.New(),
		engine, orchestrator, logger,
		ingest.WithMaxPerCycle(cfg.ScanMaxPerCycle),
	)
	if err != nil {
		logger.Fatalf("scanner error: %v", err)
	}

	monitorOpts := []monitor.Option{}
	if cfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		monitorOpts = append(monitorOpts, monitor.WithChannel(channel))
	}
	statusMonitor, err := monitor.NewStatusMonitor(tradeClient, transactions, cfg.Accounts, logger, monitorOpts...)
	if err != nil {
		logger.Fatalf("status monitor error: %v", err)
	}

	ctx := context.Background()
	go ingest.NewScheduler(scanner, cfg.ScanInterval(), logger).Run(ctx)
	go settlement.NewLoop(orchestrator, cfg.ReleaseInterval(), logger).Run(ctx)
	go statusMonitor.Run(ctx, cfg.MonitorInterval())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(jwtSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/receipts", apihttp.NewReceiptsHandler(db))
	mux.Handle("/api/v1/transactions", apihttp.NewTransactionsHandler(db))
	mux.Handle("/api/v1/reports/", apihttp.NewReportHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: httpAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", httpAddr)
	logger.Fatal(server.ListenAndServe())
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
