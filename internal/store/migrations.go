package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id         TEXT PRIMARY KEY,
	direction  TEXT NOT NULL CHECK(direction IN ('sent', 'received')),
	account    TEXT NOT NULL,
	address    TEXT NOT NULL,
	uid        INTEGER NOT NULL DEFAULT 0,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	deleted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_journal_address ON journal_entries(address);
CREATE INDEX IF NOT EXISTS idx_journal_created ON journal_entries(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_received_uid
	ON journal_entries(account, uid) WHERE direction = 'received';

CREATE INDEX IF NOT EXISTS idx_journal_direction_address
	ON journal_entries(direction, address);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE journal_entries ADD COLUMN uid_validity INTEGER NOT NULL DEFAULT 0;

DROP INDEX IF EXISTS idx_journal_received_uid;

CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_received_uid
	ON journal_entries(account, uid_validity, uid) WHERE direction = 'received';

INSERT INTO schema_version (version) VALUES (3);
`,
	},
}
