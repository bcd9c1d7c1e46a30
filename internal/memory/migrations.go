package memory

// migrations is the ordered list of schema changes. Entry i is schema
// version i+1; append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		speaker TEXT NOT NULL CHECK (speaker IN ('user', 'assistant')),
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_turns_chat_id ON turns(chat_id, id)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		chat_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		code TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_backends (
		chat_id TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}
