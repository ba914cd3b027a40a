package store

// dialect isola o que muda entre Postgres e SQLite: trava de linha,
// formatação de DATE/TIME na leitura e o schema.
type dialect struct {
	name      string
	forUpdate string
	day       func(col string) string
	clock     func(col string) string
	schema    []string
}

var postgres = dialect{
	name:      "postgres",
	forUpdate: " FOR UPDATE",
	day:       func(col string) string { return "to_char(" + col + ", 'YYYY-MM-DD')" },
	clock:     func(col string) string { return "to_char(" + col + ", 'HH24:MI:SS')" },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL UNIQUE,
			balance    NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			version    BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id            TEXT PRIMARY KEY,
			wallet_id     TEXT NOT NULL REFERENCES wallets(id),
			amount        NUMERIC(18,2) NOT NULL CHECK (amount > 0),
			kind          TEXT NOT NULL,
			status        TEXT NOT NULL,
			reference_id  TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			balance_after NUMERIC(18,2) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_wallet ON ledger_entries(wallet_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_reference ON ledger_entries(reference_id)`,
		`CREATE TABLE IF NOT EXISTS markets (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL UNIQUE,
			open_time       TIME NOT NULL,
			close_time      TIME NOT NULL,
			enabled         BOOLEAN NOT NULL DEFAULT TRUE,
			betting_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS game_types (
			id                BIGINT PRIMARY KEY,
			code              TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL,
			payout_multiplier NUMERIC(12,2) NOT NULL CHECK (payout_multiplier > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			market_id    TEXT NOT NULL REFERENCES markets(id),
			game_type_id BIGINT NOT NULL REFERENCES game_types(id),
			game_kind    TEXT NOT NULL,
			session      TEXT NOT NULL,
			selection    TEXT NOT NULL,
			stake        BIGINT NOT NULL CHECK (stake > 0),
			status       TEXT NOT NULL,
			win_amount   NUMERIC(18,2) NOT NULL DEFAULT 0,
			market_day   DATE NOT NULL,
			debit_ref    TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			settled_at   TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_settlement ON bids(market_id, market_day, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_owner ON bids(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS results (
			id            TEXT PRIMARY KEY,
			market_id     TEXT NOT NULL REFERENCES markets(id),
			result_day    DATE NOT NULL,
			open_pattern  TEXT,
			open_digit    SMALLINT,
			close_pattern TEXT,
			close_digit   SMALLINT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (market_id, result_day)
		)`,
		`CREATE TABLE IF NOT EXISTS deposits (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			amount          NUMERIC(18,2) NOT NULL CHECK (amount > 0),
			status          TEXT NOT NULL,
			reference       TEXT NOT NULL DEFAULT '',
			ledger_entry_id TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			decided_at      TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_owner ON deposits(owner_id, status)`,
		`CREATE TABLE IF NOT EXISTS referrals (
			referred_id           TEXT PRIMARY KEY,
			referrer_id           TEXT NOT NULL,
			qualifying_deposit_id TEXT,
			bonus_entry_id        TEXT,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
}

// No SQLite dinheiro fica em TEXT (decimal exato) e horários em TEXT;
// as colunas TIMESTAMP são convertidas para time.Time pelo driver.
var sqlite = dialect{
	name:      "sqlite",
	forUpdate: "",
	day:       func(col string) string { return col },
	clock:     func(col string) string { return col },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS wallets (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL UNIQUE,
			balance    TEXT NOT NULL DEFAULT '0',
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id            TEXT PRIMARY KEY,
			wallet_id     TEXT NOT NULL REFERENCES wallets(id),
			amount        TEXT NOT NULL,
			kind          TEXT NOT NULL,
			status        TEXT NOT NULL,
			reference_id  TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			balance_after TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_wallet ON ledger_entries(wallet_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_reference ON ledger_entries(reference_id)`,
		`CREATE TABLE IF NOT EXISTS markets (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL UNIQUE,
			open_time       TEXT NOT NULL,
			close_time      TEXT NOT NULL,
			enabled         INTEGER NOT NULL DEFAULT 1,
			betting_enabled INTEGER NOT NULL DEFAULT 1,
			created_at      TIMESTAMP NOT NULL,
			updated_at      TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_types (
			id                INTEGER PRIMARY KEY,
			code              TEXT NOT NULL UNIQUE,
			name              TEXT NOT NULL,
			payout_multiplier TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			market_id    TEXT NOT NULL REFERENCES markets(id),
			game_type_id INTEGER NOT NULL REFERENCES game_types(id),
			game_kind    TEXT NOT NULL,
			session      TEXT NOT NULL,
			selection    TEXT NOT NULL,
			stake        INTEGER NOT NULL,
			status       TEXT NOT NULL,
			win_amount   TEXT NOT NULL DEFAULT '0',
			market_day   TEXT NOT NULL,
			debit_ref    TEXT NOT NULL,
			created_at   TIMESTAMP NOT NULL,
			settled_at   TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_settlement ON bids(market_id, market_day, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_owner ON bids(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS results (
			id            TEXT PRIMARY KEY,
			market_id     TEXT NOT NULL REFERENCES markets(id),
			result_day    TEXT NOT NULL,
			open_pattern  TEXT,
			open_digit    INTEGER,
			close_pattern TEXT,
			close_digit   INTEGER,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL,
			UNIQUE (market_id, result_day)
		)`,
		`CREATE TABLE IF NOT EXISTS deposits (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			amount          TEXT NOT NULL,
			status          TEXT NOT NULL,
			reference       TEXT NOT NULL DEFAULT '',
			ledger_entry_id TEXT,
			created_at      TIMESTAMP NOT NULL,
			decided_at      TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_owner ON deposits(owner_id, status)`,
		`CREATE TABLE IF NOT EXISTS referrals (
			referred_id           TEXT PRIMARY KEY,
			referrer_id           TEXT NOT NULL,
			qualifying_deposit_id TEXT,
			bonus_entry_id        TEXT,
			created_at            TIMESTAMP NOT NULL
		)`,
	},
}
