package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"calbook/config"
	"calbook/handlers"
	"calbook/middleware"
	"calbook/models"
	"calbook/routes"
	"calbook/services/calendar"
	"calbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

// backendFlags let a command override the configured backends.
func backendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "calendar", Usage: "calendar backend: google or memory (overrides CALENDAR_BACKEND)"},
		&cli.StringFlag{Name: "extractor", Usage: "intent extractor: gemini or rules (overrides INTENT_EXTRACTOR)"},
		&cli.StringFlag{Name: "store", Usage: "session store: memory or redis (overrides SESSION_STORE)"},
	}
}

func applyOverrides(c *cli.Context, cfg config.Config) config.Config {
	if v := c.String("calendar"); v != "" {
		cfg.CalendarBackend = v
	}
	if v := c.String("extractor"); v != "" {
		cfg.IntentExtractor = v
	}
	if v := c.String("store"); v != "" {
		cfg.SessionStore = v
	}
	if c.IsSet("port") {
		cfg.AppPort = c.String("port")
	}
	return cfg
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP chat API.",
		Flags: append(backendFlags(),
			&cli.StringFlag{Name: "port", Usage: "listen port (overrides APP_PORT)"},
		),
		Action: func(c *cli.Context) error {
			cfg := applyOverrides(c, config.AppConfig)
			logger := utils.GetLogger()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.Health.Start(ctx, time.Minute)

			if config.IsProduction() {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery())
			router.Use(utils.ErrorHandler())
			router.Use(middleware.RequestLogger(logger))
			router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

			events, _ := rt.Calendar.(calendar.EventLister)
			hb := handlers.NewHandlerBundle(
				handlers.NewChatHandler(rt.Manager),
				handlers.NewCalendarHandler(rt.Engine, events, cfg.CalendarID, cfg.Timezone, cfg.DefaultDuration, cfg.MaxCandidates),
				handlers.NewHealthHandler(rt.Health),
			)
			routes.RegisterRoutes(router, hb)

			port := cfg.AppPort
			if port == "" {
				port = "8080"
			}
			srv := &http.Server{
				Addr:              "0.0.0.0:" + port,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Sugar().Infof("Starting server on %s...", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed to start: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("server is shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server stopped gracefully")
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the booking assistant in the terminal.",
		Flags: append(backendFlags(),
			&cli.StringFlag{Name: "timezone", Usage: "IANA timezone for this conversation"},
		),
		Action: func(c *cli.Context) error {
			cfg := applyOverrides(c, config.AppConfig)
			rt, err := newRuntime(c.Context, cfg, utils.GetLogger())
			if err != nil {
				return err
			}
			defer rt.Close()
			return runChat(c.Context, rt.Manager, c.String("timezone"), os.Stdin, os.Stdout)
		},
	}
}

// turnHandler is the part of the dialogue manager the terminal chat needs.
type turnHandler interface {
	HandleMessage(ctx context.Context, req models.ChatRequest) (models.Reply, error)
}

// runChat reads one utterance per line until EOF, "quit" or "exit".
func runChat(ctx context.Context, mgr turnHandler, timezone string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Hi! Tell me what you'd like to book. Type \"quit\" to leave.")
	scanner := bufio.NewScanner(in)
	sessionID := ""
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		reply, err := mgr.HandleMessage(ctx, models.ChatRequest{SessionID: sessionID, Message: line, Timezone: timezone})
		if err != nil {
			return err
		}
		if reply.ErrorKind == models.ErrorSessionExpired {
			sessionID = ""
		} else {
			sessionID = reply.SessionID
		}
		fmt.Fprintln(out, reply.Message)
	}
}
