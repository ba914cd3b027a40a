// Package cli implementa o matkactl, a ferramenta de operação do motor:
// schema, catálogo e as ações administrativas sobre resultados.
package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/settlement"
	"github.com/radieske/matka-settlement/internal/settlement/producer"
	"github.com/radieske/matka-settlement/internal/shared/config"
	"github.com/radieske/matka-settlement/internal/shared/db"
	sharedkafka "github.com/radieske/matka-settlement/internal/shared/kafka"
	"github.com/radieske/matka-settlement/internal/shared/logger"
	"github.com/radieske/matka-settlement/internal/store"
)

// comandos com Annotations[annotStore] = "none" não abrem o banco
const annotStore = "store"

// app guarda as dependências abertas no PersistentPreRunE.
type app struct {
	cfg     config.Config
	publish bool

	log     *zap.Logger
	conn    *sql.DB
	store   *store.Store
	engine  *settlement.Engine
	closers []io.Closer

	feedWriter sharedkafka.MessageWriter // nil: writer Kafka do tópico do feed
}

// NewRootCmd monta a árvore de comandos. Os defaults das flags vêm do
// ambiente, como nos serviços.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{cfg: config.Load()})
}

func newRootCmd(a *app) *cobra.Command {
	if a.cfg.ServiceName == "" {
		a.cfg.ServiceName = "matkactl"
	}

	root := &cobra.Command{
		Use:           "matkactl",
		Short:         "Operate the matka settlement engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Annotations[annotStore] != "none")
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfg.StoreDriver, "driver", a.cfg.StoreDriver, "store driver (postgres|sqlite)")
	pf.StringVar(&a.cfg.PostgresDSN, "dsn", a.cfg.PostgresDSN, "postgres DSN")
	pf.StringVar(&a.cfg.SQLitePath, "sqlite", a.cfg.SQLitePath, "sqlite database file")
	pf.BoolVar(&a.publish, "publish", false, "publish domain events to Kafka")

	root.AddCommand(
		a.migrateCmd(),
		a.seedCmd(),
		a.marketsCmd(),
		a.declareCmd(),
		a.revokeCmd(),
		a.reprocessCmd(),
		a.refundCmd(),
		a.auditCmd(),
		a.topicsCmd(),
		a.feedCmd(),
	)
	return root
}

// Execute roda o matkactl com os argumentos do processo.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) open(withStore bool) error {
	level := a.cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	log, err := logger.New(a.cfg.ServiceName, a.cfg.Env, level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	if !withStore {
		return nil
	}

	conn, err := db.Connect(a.cfg.StoreDriver, a.cfg.PostgresDSN, a.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("store connect: %w", err)
	}
	a.conn = conn

	st, err := store.New(a.cfg.StoreDriver, conn)
	if err != nil {
		return err
	}
	a.store = st

	opts := settlement.Options{Location: a.cfg.MarketLocation, MinStake: a.cfg.MinStake, MaxStake: a.cfg.MaxStake}
	if a.publish {
		placed := sharedkafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicBidsPlaced)
		declared := sharedkafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicResultDeclared)
		revoked := sharedkafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.TopicResultRevoked)
		a.closers = append(a.closers, placed, declared, revoked)
		opts.Sinks = []settlement.EventSink{producer.NewKafkaPublisher(placed, declared, revoked)}
	}
	a.engine = settlement.New(st, log, opts)
	return nil
}

func (a *app) close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

// market aceita o id ou o nome do mercado.
func (a *app) market(cmd *cobra.Command, ref string) (domain.Market, error) {
	if ref == "" {
		return domain.Market{}, domain.Invalid("market", "is required")
	}
	m, err := a.engine.GetMarket(cmd.Context(), ref)
	if errors.Is(err, domain.ErrNotFound) {
		return a.engine.MarketByName(cmd.Context(), ref)
	}
	return m, err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
