package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coffeeshop/internal/app"
	"coffeeshop/internal/config"
	"coffeeshop/internal/core"
	"coffeeshop/internal/modules/drinks"
	"coffeeshop/internal/modules/host"
	"coffeeshop/internal/storage"
	"coffeeshop/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// New создает корневую CLI-команду.
func New(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "coffeeshop",
		Short:         "REST API меню кофейни",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("COFFEESHOP_CONFIG"), "путь к YAML-конфигу")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newDrinksCmd(opts))
	root.AddCommand(newAuditCmd(opts))
	root.AddCommand(newHostCmd())

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			lg := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.NewApp(ctx, cfg, lg)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.Reset(ctx); err != nil {
					return err
				}
			}
			if err := a.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			lg.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "пересоздать таблицу напитков перед запуском")
	return cmd
}

// withStore открывает хранилище на время выполнения fn.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, st storage.Store) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()
	return fn(ctx, st)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить схему хранилища",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st storage.Store) error {
				if reset {
					if err := st.Reset(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "drinks table reset, seeded %q\n", storage.SeedDrink.Title)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "удалить все напитки и добавить начальную запись")
	return cmd
}

func newDrinksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drinks",
		Short: "Работа с меню",
	}
	var detail bool
	list := &cobra.Command{
		Use:   "list",
		Short: "Показать напитки",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st storage.Store) error {
				items, err := drinks.NewService(st).List(ctx)
				if err != nil {
					return err
				}
				if detail {
					out := make([]core.Drink, 0, len(items))
					for _, d := range items {
						out = append(out, d.Long())
					}
					return printJSON(cmd, out)
				}
				out := make([]core.ShortDrink, 0, len(items))
				for _, d := range items {
					out = append(out, d.Short())
				}
				return printJSON(cmd, out)
			})
		},
	}
	list.Flags().BoolVar(&detail, "detail", false, "полное представление с названиями ингредиентов")
	cmd.AddCommand(list)
	return cmd
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		limit   int
		since   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Показать журнал изменений меню",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, st storage.Store) error {
				q := storage.AuditQuery{Subject: subject, Limit: limit}
				if since > 0 {
					q.From = time.Now().Add(-since)
				}
				events, err := st.QueryAudit(ctx, q)
				if err != nil {
					return err
				}
				out := make([]auditView, 0, len(events))
				for _, ev := range events {
					out = append(out, newAuditView(ev))
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "фильтр по субъекту токена")
	cmd.Flags().IntVar(&limit, "limit", storage.DefaultAuditLimit, "максимум записей")
	cmd.Flags().DurationVar(&since, "since", 0, "только события не старше указанного интервала")
	return cmd
}

type auditView struct {
	TS        string          `json:"ts"`
	Subject   string          `json:"subject"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	Source    string          `json:"source"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newAuditView(ev storage.AuditEvent) auditView {
	v := auditView{
		TS:        ev.TS.UTC().Format(time.RFC3339),
		Subject:   ev.Subject,
		Action:    ev.Action,
		Status:    ev.Status,
		Source:    ev.Source,
		RequestID: ev.RequestID,
	}
	if json.Valid(ev.Payload) {
		v.Payload = ev.Payload
	}
	return v
}

func newHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Сведения об узле",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Показать состояние узла",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()

			st, err := host.NewProbe().Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
