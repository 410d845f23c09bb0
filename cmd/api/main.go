package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/zhouzirui/claude-code-chat/backend/internal/config"
	"github.com/zhouzirui/claude-code-chat/backend/internal/handler"
	"github.com/zhouzirui/claude-code-chat/backend/internal/logging"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/agent"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/chat"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/claude-code-chat/backend/internal/service/workspace"
)

const version = "1.0.0"

func main() {
	root := &cli.Command{
		Name:    "claude-code-chat",
		Usage:   "Chat with the Claude Code CLI from a browser",
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides PORT)",
			},
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "Host to bind (overrides HOST)",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log level: debug, info, warn, error (overrides LOG_LEVEL)",
			},
		},
		Action: run,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	if envErr != nil {
		logger.Debug("no .env file loaded, using process environment", "err", envErr)
	}

	startDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	instance := fmt.Sprintf("PID%d", os.Getpid())

	// 先占用端口，占用失败时提示换一个端口
	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return cli.Exit(portHint(cfg.Server.Port, err), 1)
	}

	sessions := chat.NewService(chat.Config{
		MaxMessages:      cfg.Session.MaxMessages,
		MaxSessions:      cfg.Session.MaxSessions,
		DefaultDirectory: startDir,
	}, logger)
	runner := agent.NewRunner(agent.Config{
		CommandPrefix:        cfg.Agent.CommandPrefix,
		DangerousPermissions: cfg.Agent.DangerousPermissions,
		Timeout:              cfg.Agent.Timeout,
		StreamTimeout:        cfg.Agent.StreamTimeout,
	}, logger)
	conv := conversation.NewService(sessions, runner, conversation.Config{
		ContextWindow: cfg.Session.ContextWindow,
		Language:      cfg.Agent.ResponseLanguage,
	}, logger)

	router := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Logger:    logger,
		Instance:  instance,
		Sessions:  sessions,
		Agent:     runner,
		Chat:      conv,
		Directory: workspace.NewManager(sessions, logger),
	})

	fmt.Println(banner(bannerInfo{
		Version:       version,
		Instance:      instance,
		URL:           displayURL(cfg.Server.Host, cfg.Server.Port),
		RootDir:       startDir,
		Command:       cfg.Agent.CommandPrefix,
		Timeout:       cfg.Agent.Timeout,
		StreamTimeout: cfg.Agent.StreamTimeout,
	}))

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("listening", "addr", ln.Addr().String(), "instance", instance)
	if err := runServer(ctx, srv, ln); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped", "instance", instance)
	return nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) error {
	if cmd.IsSet("port") {
		port := cmd.Int("port")
		if err := config.ValidatePort(port); err != nil {
			return err
		}
		cfg.Server.Port = port
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("log") {
		if _, err := log.ParseLevel(cmd.String("log")); err != nil {
			return err
		}
		cfg.Log.Level = cmd.String("log")
		cfg.Log.Debug = false
	}
	return nil
}

func portHint(port int, err error) string {
	next := port + 1
	if next > 65535 {
		next = 8081
	}
	return fmt.Sprintf("cannot listen on port %d: %v\ntry another port: --port %d", port, err, next)
}

func displayURL(host string, port int) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/claude_chat.html", net.JoinHostPort(host, fmt.Sprint(port)))
}

func runServer(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
