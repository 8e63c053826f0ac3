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

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT 'GENERAL',
	priority    TEXT NOT NULL DEFAULT 'NORMAL',
	is_read     INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE notifications ADD COLUMN company_id TEXT NOT NULL DEFAULT '';
ALTER TABLE notifications ADD COLUMN employee_id TEXT NOT NULL DEFAULT '';
ALTER TABLE notifications ADD COLUMN metadata TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, is_read);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
