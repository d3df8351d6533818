package db

import "database/sql"

func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    slug        TEXT    NOT NULL UNIQUE,
    title       TEXT    NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    domain      TEXT    UNIQUE,
    status      TEXT    NOT NULL DEFAULT 'DRAFT'
                CHECK (status IN ('ACTIVE', 'ARCHIVED', 'GRADUATED', 'DRAFT')),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_domain ON projects(domain) WHERE domain IS NOT NULL;

CREATE TABLE IF NOT EXISTS page_configs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id      INTEGER NOT NULL,
    template_config TEXT    NOT NULL DEFAULT '{}',
    design_config   TEXT    NOT NULL DEFAULT '{}',
    is_active       INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_page_configs_project ON page_configs(project_id) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS form_submissions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id   INTEGER NOT NULL,
    submitted_at DATETIME NOT NULL,
    email        TEXT    NOT NULL,
    form_data    TEXT    NOT NULL DEFAULT '{}',
    ip_hash      TEXT,
    user_agent   TEXT,
    referrer     TEXT,
    utm_source   TEXT,
    utm_medium   TEXT,
    utm_campaign TEXT,
    UNIQUE (project_id, email),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_submissions_project_time ON form_submissions(project_id, submitted_at);

CREATE TABLE IF NOT EXISTS analytics_events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id   INTEGER NOT NULL,
    event_type   TEXT    NOT NULL,
    timestamp    DATETIME NOT NULL,
    ip_hash      TEXT,
    user_agent   TEXT,
    referrer     TEXT,
    pathname     TEXT,
    utm_source   TEXT,
    utm_medium   TEXT,
    utm_campaign TEXT,
    country      TEXT,
    device_type  TEXT,
    browser      TEXT,
    metadata     TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_project_type_time ON analytics_events(project_id, event_type, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON analytics_events(timestamp);
`
