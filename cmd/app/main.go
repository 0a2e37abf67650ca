package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"colorsnap/internal/cache"
	"colorsnap/internal/chain"
	"colorsnap/internal/config"
	"colorsnap/internal/db"
	httpServer "colorsnap/internal/http"
	"colorsnap/internal/http/handlers"
	"colorsnap/internal/http/middleware"
	"colorsnap/internal/logger"
	"colorsnap/internal/repository"
	"colorsnap/internal/service"
	"colorsnap/internal/session"
	"colorsnap/internal/txn"
	"colorsnap/internal/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	keys, err := chain.ParseKeyRing(cfg.SignerKeys)
	if err != nil {
		logger.Fatal("invalid SIGNER_KEYS", "error", err)
	}
	for _, addr := range keys.Addresses() {
		logger.Info("signer configured", "address", addr.Hex())
	}

	deps := map[string]handlers.Pinger{}

	factory, closeChain := gatewayFactory(cfg, keys, deps)
	defer closeChain()

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rs.Close()
			store = rs
			middleware.UseRedis(rs.Client())
			deps["redis"] = rs
		}
	}

	opts := session.Options{Store: store}
	var txRepo *repository.TransactionRepository
	var gameRepo *repository.GameRepository
	if cfg.DatabaseURL != "" {
		pool := db.Connect(cfg.DatabaseURL)
		defer pool.Close()
		txRepo = repository.NewTransactionRepository(pool)
		gameRepo = repository.NewGameRepository(pool)
		opts.Journal = &session.RepoJournal{Txs: txRepo, Games: gameRepo}
		deps["database"] = pool
	}

	sessCfg := session.Config{
		PollInterval: cfg.PollInterval,
		Tracker: txn.Config{
			DisplayWindow: cfg.TxDisplay,
			NameSettle:    cfg.NameSettle,
			GameSettle:    cfg.GameSettle,
		},
		RevealLock: cfg.RevealLock,
		RevealTick: cfg.RevealTick,
	}
	mgr := session.NewManager(factory, sessCfg, opts, cfg.SessionIdleTimeout)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	mgr.StartCleanup(ctx)

	hub := ws.NewHub()
	h := handlers.NewHandler(mgr, hub, cfg.TokenTTL)
	h.TransactionRepo = txRepo
	h.GameRepo = gameRepo
	health := handlers.NewHealthHandler(deps, mgr.Len, version)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(cfg.AllowedOrigin))
	httpServer.RegisterRoutes(r, h, health, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "chain_mode", cfg.ChainMode, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stop()
	mgr.CloseAll()

	logger.Info("server exited")
}

// gatewayFactory returns how sessions get their gateway, and a cleanup.
func gatewayFactory(cfg *config.Config, keys *chain.KeyRing, deps map[string]handlers.Pinger) (session.GatewayFactory, func()) {
	switch cfg.ChainMode {
	case chain.ModeSim:
		sim := chain.NewSimulator(cfg.SimSeed)
		logger.Warn("using in-process contract simulator")
		return func(addr common.Address) (chain.Gateway, error) {
			if !keys.Has(addr) {
				return nil, fmt.Errorf("%s: %w", addr.Hex(), chain.ErrUnknownSigner)
			}
			return sim.As(addr), nil
		}, func() {}
	}

	contract, err := chain.ParseAddress(cfg.ContractAddress)
	if err != nil {
		logger.Fatal("invalid CONTRACT_ADDRESS", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := chain.Dial(ctx, cfg.RPCURL, contract)
	if err != nil {
		logger.Fatal("failed to connect to rpc", "url", cfg.RPCURL, "error", err)
	}
	deps["chain"] = client
	logger.Info("rpc connected", "chain_id", client.ChainID().String(), "contract", contract.Hex())

	return func(addr common.Address) (chain.Gateway, error) {
		key, err := keys.Key(addr)
		if err != nil {
			return nil, err
		}
		acct, err := client.WithSigner(key)
		if err != nil {
			return nil, err
		}
		return acct, nil
	}, client.Close
}

// cors allows the configured origin, or any origin when none is set.
func cors(allowed string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowed == "" || origin == allowed) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
