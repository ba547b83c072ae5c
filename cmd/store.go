package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/store"
)

var errNoLedger = eris.New("run ledger is disabled (store.driver=none)")

// initStore opens and migrates the configured run ledger. It returns a nil
// Store when the ledger is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "quotes.db"
		}
		s, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		st = s
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that cannot work without a ledger.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNoLedger
	}
	return st, nil
}
