package cmd

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"xchain-swap/config"
	"xchain-swap/pkg/client"
	"xchain-swap/pkg/dex"
	"xchain-swap/pkg/events"
	"xchain-swap/pkg/payment"
	"xchain-swap/pkg/route"
	"xchain-swap/pkg/store"
	"xchain-swap/pkg/swap"
	"xchain-swap/pkg/transport"
)

// app wires the engine, the payment overlay and their collaborators for one
// command invocation
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	storage *store.Storage

	engine  *swap.Engine
	overlay *payment.Overlay

	conn   *nats.Conn
	nats   *transport.NATS
	outbox *transport.Outbox
}

// newApp loads configuration and state. online connects to NATS when it is
// configured; offline commands only touch the local state file.
func newApp(cmd *cobra.Command, online bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("state"); path != "" {
		cfg.StatePath = path
	}

	logger := cfg.NewLogger()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	storage, err := store.NewStorage(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, storage: storage}

	emitters := events.Multi{events.NewLogEmitter(logger)}
	var dispatcher transport.Dispatcher
	if online && cfg.NATS.URL != "" {
		conn, err := transport.Connect(cfg.NATS.URL, cfg.NATS.Timeout, logger)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		a.nats = transport.NewNATS(conn, cfg.NATS.RequestSubject, cfg.NATS.ResponseSubject, logger)
		dispatcher = a.nats
		if cfg.NATS.EventSubject != "" {
			emitters = append(emitters, events.NewNATSEmitter(conn, cfg.NATS.EventSubject, logger))
		}
	} else {
		a.outbox = transport.NewOutbox()
		dispatcher = a.outbox
	}

	a.engine = swap.NewEngine(dispatcher,
		swap.WithLogger(logger),
		swap.WithEmitter(emitters),
		swap.WithStepExecutor(dex.NewLocal(route.FixedRate{}, logger)),
	)

	quoter, err := newQuoter(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.overlay = payment.New(a.engine,
		payment.WithQuoter(quoter),
		payment.WithAutoDispatch(cfg.Payments.AutoDispatch),
		payment.WithLogger(logger),
		payment.WithEmitter(emitters),
	)

	if err := storage.Load(a.overlay); err != nil {
		a.close()
		return nil, errors.Wrapf(err, "failed to load %s", storage.Path())
	}
	return a, nil
}

func newQuoter(cfg *config.Config, logger *logrus.Logger) (route.Quoter, error) {
	switch cfg.Quoter {
	case config.QuoterOneClick:
		return client.NewOneClickClient(cfg.OneClick.JWTToken, cfg.OneClick.Recipient, logger), nil
	case config.QuoterFixed, "":
		return route.FixedRate{}, nil
	default:
		return nil, errors.Errorf("unknown quoter %q", cfg.Quoter)
	}
}

// update runs fn against the latest state file contents and saves the
// result, holding the file lock throughout so a running daemon and other
// commands cannot interleave
func (a *app) update(fn func() error) error {
	return a.storage.Update(a.overlay, fn)
}

func (a *app) close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close transport")
		}
	}
	if a.conn != nil {
		// flush buffered publishes before exiting
		if err := a.conn.Flush(); err != nil {
			a.logger.WithError(err).Warn("failed to flush nats connection")
		}
		a.conn.Close()
	}
}

// parseAddress reads an identity flag
func parseAddress(raw, what string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("%s must be a hex address, got %q", what, raw)
	}
	return common.HexToAddress(raw), nil
}

func addressFlag(cmd *cobra.Command) (common.Address, error) {
	raw, _ := cmd.Flags().GetString("from")
	if raw == "" {
		return common.Address{}, errors.New("--from is required")
	}
	return parseAddress(raw, "--from")
}
