package database

// schemaStatements is portable between PostgreSQL and SQLite.
// Timestamps are written in UTC; JSON payloads are stored as TEXT.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		login TEXT NOT NULL,
		name TEXT,
		email TEXT,
		github_id BIGINT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS repositories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		provider_id BIGINT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		full_name TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT,
		language TEXT,
		is_private BOOLEAN NOT NULL DEFAULT false,
		star_count INTEGER NOT NULL DEFAULT 0,
		last_synced_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_repositories_user_id ON repositories(user_id)`,

	`CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		provider_id BIGINT NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		state TEXT NOT NULL,
		complexity DOUBLE PRECISION NOT NULL DEFAULT 1,
		priority DOUBLE PRECISION NOT NULL DEFAULT 1,
		labels_json TEXT,
		comment_count INTEGER NOT NULL DEFAULT 0,
		assigned_at TIMESTAMP,
		closed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (repo_id, provider_id),
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_user_state ON issues(user_id, state)`,

	`CREATE TABLE IF NOT EXISTS pull_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		provider_id BIGINT NOT NULL,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		state TEXT NOT NULL,
		complexity DOUBLE PRECISION NOT NULL DEFAULT 1,
		labels_json TEXT,
		additions INTEGER NOT NULL DEFAULT 0,
		deletions INTEGER NOT NULL DEFAULT 0,
		changed_files INTEGER NOT NULL DEFAULT 0,
		review_comments INTEGER NOT NULL DEFAULT 0,
		merged_at TIMESTAMP,
		closed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (repo_id, provider_id),
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pull_requests_user_state ON pull_requests(user_id, state)`,

	`CREATE TABLE IF NOT EXISTS commits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		sha TEXT NOT NULL,
		message TEXT NOT NULL,
		additions INTEGER NOT NULL DEFAULT 0,
		deletions INTEGER NOT NULL DEFAULT 0,
		files_changed INTEGER NOT NULL DEFAULT 0,
		committed_at TIMESTAMP NOT NULL,
		UNIQUE (repo_id, sha),
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_repo_committed ON commits(repo_id, committed_at DESC)`,

	`CREATE TABLE IF NOT EXISTS context_switches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		from_task_type TEXT NOT NULL,
		to_task_type TEXT NOT NULL,
		switched_at TIMESTAMP NOT NULL,
		estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_context_switches_user_time ON context_switches(user_id, switched_at)`,

	`CREATE TABLE IF NOT EXISTS focus_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_type TEXT NOT NULL,
		task_id TEXT,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		duration INTEGER NOT NULL DEFAULT 0,
		interrupted BOOLEAN NOT NULL DEFAULT false,
		interruption_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_focus_sessions_user_started ON focus_sessions(user_id, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS daily_analytics (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		total_focus_minutes INTEGER NOT NULL DEFAULT 0,
		context_switches INTEGER NOT NULL DEFAULT 0,
		avg_cognitive_load DOUBLE PRECISION NOT NULL DEFAULT 0,
		deep_work_streaks INTEGER NOT NULL DEFAULT 0,
		peak_focus_hour INTEGER NOT NULL DEFAULT 0,
		tasks_completed INTEGER NOT NULL DEFAULT 0,
		UNIQUE (user_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS cognitive_snapshots (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		score INTEGER NOT NULL,
		level TEXT NOT NULL,
		breakdown_json TEXT NOT NULL,
		factors_json TEXT NOT NULL,
		weights_version TEXT,
		taken_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cognitive_snapshots_user_time ON cognitive_snapshots(user_id, taken_at DESC)`,

	`CREATE TABLE IF NOT EXISTS agent_recommendations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		priority TEXT NOT NULL,
		estimated_cost_minutes INTEGER,
		suggested_actions_json TEXT NOT NULL,
		dismissed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_recommendations_user_created ON agent_recommendations(user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS ai_briefings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		task_type TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		sections_json TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_briefings_user_generated ON ai_briefings(user_id, generated_at DESC)`,
}
