package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"PPChat/global/config"
	"PPChat/logger"
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/service/api"
	"PPChat/service/chat"
	"PPChat/service/chat/handlers"
	"PPChat/service/storage"
	"PPChat/tools/ids"
	"PPChat/tools/safe"
	"PPChat/tools/security"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML config (default $"+config.EnvConfigPath+")")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("exit", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.AppConfig) error {
	ids.SetNodeID(cfg.NodeID)
	gen := ids.NewGenerator(cfg.NodeID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage, gen)
	if err != nil {
		return err
	}

	publisher, err := openPublisher(cfg.Events)
	if err != nil {
		_ = store.Close()
		return err
	}

	var presence *storage.RedisPresence
	hubOpts := chat.Options{
		Store:             store,
		Publisher:         publisher,
		RequireMembership: cfg.WS.RequireMembership,
		StoreTimeout:      cfg.Storage.Timeout,
	}
	if cfg.Redis.Enabled {
		presence, err = storage.NewRedisPresence(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			_ = publisher.Close()
			_ = store.Close()
			return err
		}
		hubOpts.Presence = presence
	}

	hub := chat.NewHub(hubOpts)
	if presence != nil {
		safe.Go("presence-refresh", func() {
			presence.Run(ctx, hub.Registry().Snapshot, cfg.Redis.Refresh)
		})
	}

	disp := chat.NewDispatcher()
	handlers.Register(disp)

	origins := middleware.NewOriginPolicy(cfg.HTTP.AllowedOrigins)
	wsCfg := chat.ServerConfig{
		SendQueue:    cfg.WS.SendQueue,
		ReadLimit:    cfg.WS.ReadLimit,
		PongWait:     cfg.WS.PongWait,
		PingInterval: cfg.WS.PingInterval,
		WriteWait:    cfg.WS.WriteWait,
		CheckOrigin:  origins.CheckOrigin,
	}
	deps := api.Deps{Origins: origins, WSPath: cfg.WS.Path}
	if cfg.Auth.Enabled {
		jwtOpts := security.Options{
			Secret: []byte(cfg.Auth.Secret),
			Alg:    cfg.Auth.Alg,
			TTL:    cfg.Auth.TTL,
			Issuer: "ppchat",
		}
		wsCfg.Auth = &jwtOpts
		deps.Auth = &midsec.Options{JWT: jwtOpts}
	}
	wsServer := chat.NewServer(hub, disp, wsCfg, gen)
	deps.Hub, deps.WS = hub, wsServer

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	safe.Go("http", func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.Strings("events", disp.Events()),
			zap.String("storage", cfg.Storage.Driver), zap.String("publisher", cfg.Events.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
			cancel()
		}
	})

	ops := map[string]gfshutdown.Operation{
		// 停止接收新连接；已 hijack 的 websocket 不在这里等待
		"http": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
		"hub": func(ctx context.Context) error {
			return wsServer.Shutdown(ctx)
		},
	}
	wait := gfshutdown.GracefulShutdown(ctx, cfg.HTTP.ShutdownTimeout, ops)
	code := <-wait

	// hub 关闭时已刷完事件队列，这里释放它用到的资源
	cancel()
	if err := publisher.Close(); err != nil {
		logger.Warn("close publisher", zap.Error(err))
	}
	if presence != nil {
		if err := presence.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Warn("close store", zap.Error(err))
	}
	logger.Info("stopped", zap.Int("code", code))
	if code != 0 {
		return fmt.Errorf("shutdown finished with code %d", code)
	}
	return nil
}
