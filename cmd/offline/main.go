package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vitrina/internal/config"
	"vitrina/internal/culture"
	"vitrina/internal/offline"
	"vitrina/internal/service"
)

func main() {
	var configPath string
	var cfg config.Config

	root := &cobra.Command{
		Use:   "vitrina-offline",
		Short: "Офлайн-зеркало протокола: локальный кэш объектов и запросов",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load(configPath)

			// Флаги поверх JSON/ENV
			if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
				cfg.Addr = f.Value.String()
			}
			if f := cmd.Flags().Lookup("store"); f != nil && f.Changed {
				cfg.StoreDriver = f.Value.String()
			}
			if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
				cfg.DBURL = f.Value.String()
			}
			if f := cmd.Flags().Lookup("sqlite"); f != nil && f.Changed {
				cfg.SQLitePath = f.Value.String()
			}
			if f := cmd.Flags().Lookup("service"); f != nil && f.Changed {
				cfg.ServiceURI = f.Value.String()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "vitrina.json", "путь к JSON-конфигу")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-зеркало над локальным хранилищем",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.LogLevel)

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			reg := offline.NewRegistry(store, log)

			log.Info().Str("addr", cfg.Addr).Str("store", cfg.StoreDriver).Msg("стартуем зеркало")
			return offline.RunServer(cfg.Addr, reg, log)
		},
	}
	serve.Flags().String("addr", ":8080", "адрес HTTP-сервера")
	serve.Flags().String("store", "memory", "хранилище: memory | sqlite | postgres")
	serve.Flags().String("sqlite", "vitrina.db", "путь к файлу SQLite")
	serve.Flags().String("db", "", "Postgres URL")

	warm := &cobra.Command{
		Use:   "warm [queryId ...]",
		Short: "Прогреть кэш запросами с удалённого сервиса",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.LogLevel)

			ids := args
			if len(ids) == 0 {
				ids = cfg.QueryIDs
			}
			if len(ids) == 0 {
				return fmt.Errorf("не указаны id запросов для прогрева")
			}
			if cfg.ServiceURI == "" {
				return fmt.Errorf("не указан адрес удалённого сервиса")
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var cultures map[string]*culture.Culture
			if cfg.CulturesDir != "" {
				cultures, err = culture.LoadCatalog(cfg.CulturesDir)
				if err != nil {
					return err
				}
			}

			svc := service.New(cfg.ServiceURI, &service.Options{
				Transient: true,
				Logger:    log,
				Cultures:  cultures,
			})

			ctx := context.Background()
			if _, err := svc.Initialize(ctx, true); err != nil {
				return err
			}
			if _, err := svc.SignInUsingCredentials(ctx, cfg.UserName, cfg.Password, "", false); err != nil {
				return err
			}

			actions := offline.NewActions(store, log)
			for _, id := range ids {
				if err := warmQuery(ctx, svc, actions, id); err != nil {
					log.Error().Err(err).Str("query", id).Msg("прогрев запроса не удался")
					continue
				}
				log.Info().Str("query", id).Msg("запрос закэширован")
			}
			return nil
		},
	}
	warm.Flags().String("store", "memory", "хранилище: memory | sqlite | postgres")
	warm.Flags().String("sqlite", "vitrina.db", "путь к файлу SQLite")
	warm.Flags().String("db", "", "Postgres URL")
	warm.Flags().String("service", "", "адрес удалённого сервиса")

	root.AddCommand(serve, warm)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// warmQuery выгружает запрос с живого сервера вместе со страницей
// результата и кладёт его в локальное хранилище.
func warmQuery(ctx context.Context, svc *service.Service, actions *offline.Actions, id string) error {
	query, err := svc.GetQuery(ctx, id)
	if err != nil {
		return err
	}

	page, err := svc.ExecuteQuery(ctx, nil, query, false)
	if err != nil {
		return err
	}

	d := query.Dto()
	d.Result = page
	return actions.CacheQuery(ctx, d)
}

func openStore(cfg config.Config) (offline.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return offline.NewMemStore(), nil
	case "sqlite":
		return offline.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return offline.OpenPostgres(cfg.DBURL)
	default:
		return nil, fmt.Errorf("неизвестное хранилище: %s", cfg.StoreDriver)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
