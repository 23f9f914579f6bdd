package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadp "microfi-backend/internal/adapter/http"
	appmw "microfi-backend/internal/adapter/middleware"
	"microfi-backend/internal/adapter/repository/mysql"
	"microfi-backend/internal/advisory"
	"microfi-backend/internal/config"
	"microfi-backend/internal/infrastructure/cache"
	"microfi-backend/internal/infrastructure/db"
	"microfi-backend/internal/ledger"
	"microfi-backend/internal/logger"
	"microfi-backend/internal/settlement"
	"microfi-backend/internal/task"
	fundinguc "microfi-backend/internal/usecase/funding"
	loanuc "microfi-backend/internal/usecase/loan"
	"microfi-backend/pkg/amortize"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		zl.Fatal("migrate database", zap.Error(err))
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		zl.Fatal("open redis", zap.Error(err))
	}

	lc, err := ledger.Dial(ctx, cfg.LedgerEndpoint, cfg.LedgerNetwork, cfg.ExplorerBase)
	if err != nil {
		zl.Fatal("dial ledger", zap.Error(err))
	}
	defer lc.Close()

	account, err := settlement.NewAccount(cfg.PlatformAddress, cfg.PlatformCredential)
	if err != nil {
		zl.Fatal("custodial account", zap.Error(err))
	}
	engine := settlement.NewEngine(account, lc, mysql.NewTransferRepository(gdb), zl, settlement.Options{
		SubmitAttempts:     cfg.SubmitAttempts,
		ConfirmAttempts:    cfg.ConfirmAttempts,
		Production:         cfg.Production(),
		SimulateRepayments: cfg.SimulateRepayments,
	})
	defer engine.Close()

	riskEngine := amortize.RiskEngine{
		PrincipalThreshold: cfg.RiskPrincipalThreshold,
		RateCeiling:        cfg.RiskRateCeilingPct,
	}

	guow := mysql.NewGormUoW(gdb)
	loanUC := loanuc.NewUsecase(guow, mysql.NewLoanRepository(gdb), engine, riskEngine, zl)
	loanUC.SetExplorerURL(lc.ExplorerTxURL)

	fundingUC := fundinguc.NewUsecase(guow, zl)
	fundingUC.SetFullyFundedHook(func(loanID string) {
		// Disbursement runs off the contributor's request path; the sweep
		// re-drives it if this attempt dies with the process.
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := loanUC.Disburse(dctx, loanID); err != nil {
				zl.Error("disbursement trigger", zap.String("loan_id", loanID), zap.Error(err))
			}
		}()
	})

	advisoryClient := advisory.NewClient(cfg.AdvisoryEndpoint, cfg.AdvisoryAPIKey)

	cv := httpadp.NewValidator()
	h := httpadp.NewHandler()
	loanH := httpadp.NewLoanHandler(loanUC, cv)
	fundingH := httpadp.NewFundingHandler(fundingUC, cv)
	settlementH := httpadp.NewSettlementHandler(engine, lc, cv, cfg.LedgerNetwork)
	advisoryH := httpadp.NewAdvisoryHandler(advisoryClient, riskEngine, cv)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())
	e.Use(appmw.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))

	e.GET("/health", h.Health)
	e.POST("/loans", loanH.CreateLoan)
	e.GET("/loans", loanH.ListLoans)
	e.GET("/loans/:loan_id", loanH.GetLoan)
	e.POST("/loans/:loan_id/contributions", fundingH.Contribute)
	e.POST("/loans/:loan_id/repayments", loanH.Repay)
	e.POST("/loans/:loan_id/disbursement", loanH.Disburse)
	e.GET("/addresses/:address/balance", settlementH.Balance)
	e.GET("/addresses/:address/history", settlementH.History)
	e.POST("/faucet", settlementH.Faucet)
	e.GET("/platform/wallet", settlementH.PlatformWallet)
	e.POST("/advisory/assess", advisoryH.Assess)

	tasks, err := task.NewManager(zl)
	if err != nil {
		zl.Fatal("task manager", zap.Error(err))
	}
	sweepEvery := time.Duration(cfg.SweepIntervalSecs) * time.Second
	if err := tasks.RegisterSettlementSweep(engine, loanUC, sweepEvery); err != nil {
		zl.Fatal("register sweep", zap.Error(err))
	}
	if err := tasks.RegisterOverdueMarker(loanUC, 24*time.Hour); err != nil {
		zl.Fatal("register overdue marker", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks.Start()
		<-gctx.Done()
		return tasks.Stop()
	})
	g.Go(func() error {
		addr := ":" + cfg.AppPort
		zl.Info("listening", zap.String("addr", addr), zap.String("network", cfg.LedgerNetwork))
		return e.Start(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		zl.Error("shutdown", zap.Error(err))
	}
}
