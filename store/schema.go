package store

// Schema is the complete Legio database definition. It is applied on every
// Open; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE,
	password TEXT,
	role TEXT DEFAULT 'user',
	points INTEGER DEFAULT 0,
	level INTEGER DEFAULT 1,
	avatar TEXT,
	name TEXT,
	bio TEXT,
	birthdate TEXT,
	last_seen DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_name ON users(name);

CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	description TEXT,
	image TEXT,
	tags TEXT DEFAULT '[]',
	category TEXT DEFAULT 'general',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS polls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	news_id INTEGER,
	question TEXT,
	correct_option_id INTEGER DEFAULT NULL,
	is_resolved INTEGER DEFAULT 0,
	FOREIGN KEY (news_id) REFERENCES news(id)
);

CREATE TABLE IF NOT EXISTS poll_options (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	poll_id INTEGER,
	text TEXT,
	FOREIGN KEY (poll_id) REFERENCES polls(id)
);

CREATE TABLE IF NOT EXISTS votes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	poll_id INTEGER,
	option_id INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (poll_id) REFERENCES polls(id),
	FOREIGN KEY (option_id) REFERENCES poll_options(id),
	UNIQUE(user_id, poll_id)
);

CREATE TABLE IF NOT EXISTS likes (
	user_id INTEGER,
	news_id INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (news_id) REFERENCES news(id),
	PRIMARY KEY (user_id, news_id)
);

CREATE TABLE IF NOT EXISTS error_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	news_id INTEGER,
	user_id INTEGER,
	message TEXT NOT NULL,
	status TEXT DEFAULT 'pending',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (news_id) REFERENCES news(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS points_settings (
	id INTEGER PRIMARY KEY,
	start_points INTEGER NOT NULL,
	wins_points INTEGER NOT NULL,
	level_points INTEGER NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS points_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	points INTEGER,
	calculation_date DATETIME,
	comment TEXT,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT DEFAULT 'direct',
	name TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_participants (
	chat_id INTEGER,
	user_id INTEGER,
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (user_id) REFERENCES users(id),
	PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER,
	sender_id INTEGER,
	content TEXT,
	is_read INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (chat_id) REFERENCES chats(id),
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS message_attachments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER,
	url TEXT,
	type TEXT,
	name TEXT,
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS blocked_users (
	blocker_id INTEGER,
	blocked_id INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (blocker_id) REFERENCES users(id),
	FOREIGN KEY (blocked_id) REFERENCES users(id),
	PRIMARY KEY (blocker_id, blocked_id)
);

CREATE TABLE IF NOT EXISTS visits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT,
	count INTEGER DEFAULT 0,
	UNIQUE(date)
);

CREATE INDEX IF NOT EXISTS idx_news_created_at ON news(created_at);
CREATE INDEX IF NOT EXISTS idx_news_category ON news(category);
CREATE INDEX IF NOT EXISTS idx_likes_news_id ON likes(news_id);
CREATE INDEX IF NOT EXISTS idx_votes_poll_id ON votes(poll_id);
CREATE INDEX IF NOT EXISTS idx_votes_option_id ON votes(option_id);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);
CREATE INDEX IF NOT EXISTS idx_chat_participants_user_id ON chat_participants(user_id);
`
