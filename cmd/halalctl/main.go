// Command halalctl runs HalalWay admin tasks against the configured store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/halalway/halalway/internal/adapters/auth"
	"github.com/halalway/halalway/internal/adapters/valkey"
	"github.com/halalway/halalway/internal/bootstrap"
	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/core/usecases"
	"github.com/halalway/halalway/internal/pkg/config"
	"github.com/halalway/halalway/internal/pkg/logging"
	"github.com/halalway/halalway/internal/workflows"
)

// env holds what commands need from the outside world.
type env struct {
	out       io.Writer
	loadCfg   func() (*config.Config, error)
	openStore func(ctx context.Context, cfg *config.Config) (*bootstrap.Store, error)
}

func main() {
	e := &env{
		out:       os.Stdout,
		loadCfg:   func() (*config.Config, error) { return config.Load("halalctl") },
		openStore: bootstrap.OpenStore,
	}
	if err := newApp(e).RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:   "halalctl",
		Usage:  "HalalWay administration",
		Writer: e.out,
		Before: func(cCtx *cli.Context) error {
			logging.Setup("halalctl", cCtx.String("log-level"), "text")
			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"HALALWAY_LOG_LEVEL"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "issue a bearer token for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uid", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: e.issueToken,
			},
			{
				Name:      "set-role",
				Usage:     "set the role of a user",
				ArgsUsage: "<uid> <Entrepreneur|Admin|General User>",
				Action:    e.setRole,
			},
			{
				Name:      "report",
				Usage:     "print the engagement report of a campaign subscription",
				ArgsUsage: "<campaign-id>",
				Action:    e.report,
			},
			{
				Name:      "remove-entrepreneur",
				Usage:     "delete an entrepreneur and everything they own",
				ArgsUsage: "<entrepreneur-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "workflow", Usage: "run on the Temporal worker instead of in process"},
				},
				Action: e.removeEntrepreneur,
			},
		},
	}
}

func (e *env) issueToken(cCtx *cli.Context) error {
	cfg, err := e.loadCfg()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	token, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(domain.AuthUser{
		UID:   cCtx.String("uid"),
		Email: cCtx.String("email"),
	}, cCtx.Duration("ttl"))
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(e.out, token)
	return nil
}

func (e *env) setRole(cCtx *cli.Context) error {
	uid, raw := cCtx.Args().Get(0), cCtx.Args().Get(1)
	if uid == "" || raw == "" {
		return errors.New("usage: halalctl set-role <uid> <role>")
	}
	role := domain.Role(raw)
	if domain.ParseRole(raw) != role {
		return fmt.Errorf("unknown role %q", raw)
	}

	cfg, store, err := e.open(cCtx.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Merge(cCtx.Context, domain.CollectionUsers, uid, domain.Document{
		"role":      string(role),
		"updatedAt": ports.ServerTimestamp(),
	}); err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr, "halalway")
		if err != nil {
			slog.Warn("role cache not invalidated", "uid", uid, "error", err)
		} else {
			usecases.NewRoleRouter(store, cache).InvalidateRole(cCtx.Context, uid)
			cache.Close()
		}
	}
	fmt.Fprintf(e.out, "%s is now %s\n", uid, role)
	return nil
}

func (e *env) report(cCtx *cli.Context) error {
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("usage: halalctl report <campaign-id>")
	}
	_, store, err := e.open(cCtx.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := usecases.NewEngagementRecorder(store).Report(cCtx.Context, id)
	if err != nil {
		return err
	}
	return e.printJSON(rep)
}

func (e *env) removeEntrepreneur(cCtx *cli.Context) error {
	id := cCtx.Args().First()
	if id == "" {
		return errors.New("usage: halalctl remove-entrepreneur <entrepreneur-id>")
	}
	cfg, store, err := e.open(cCtx.Context)
	if err != nil {
		return err
	}
	defer store.Close()

	var remover interface {
		RemoveEntrepreneur(ctx context.Context, id string) (*usecases.RemovalResult, error)
	} = usecases.NewRemovalService(store)
	if cCtx.Bool("workflow") {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		defer c.Close()
		remover = workflows.NewStarter(c, cfg.Temporal.TaskQueue)
	}

	res, err := remover.RemoveEntrepreneur(cCtx.Context, id)
	if res != nil {
		if perr := e.printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}

func (e *env) open(ctx context.Context) (*config.Config, *bootstrap.Store, error) {
	cfg, err := e.loadCfg()
	if err != nil {
		return nil, nil, err
	}
	store, err := e.openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
