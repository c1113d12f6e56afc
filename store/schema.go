package store

import (
	"fmt"
)

const schemaVer = 1

func (ss *SQLStore) checkSchema() error {
	ver, err := ss.schemaVersion()
	if err != nil {
		return err
	}
	if ver == schemaVer {
		return nil // up to date.
	}

	// auto schema management currently only for sqlite.
	if ss.driverName != "sqlite3" {
		return fmt.Errorf("missing schema (set it up by hand for %s)", ss.driverName)
	}

	if ver != 0 {
		return fmt.Errorf("no schema upgrade path (from ver %d)", ver)
	}

	stmts := []string{
		`CREATE TABLE article (
			id INTEGER PRIMARY KEY,
			added TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			published TIMESTAMP DEFAULT NULL,
			date_guessed INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			relevance INTEGER NOT NULL DEFAULT 0 )`,
		`CREATE INDEX article_source ON article(source)`,
		`CREATE INDEX article_published ON article(published)`,

		`CREATE TABLE article_keyword (
			id INTEGER PRIMARY KEY,
			article_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			FOREIGN KEY(article_id) REFERENCES article(id) ON DELETE CASCADE )`,
		`CREATE INDEX article_keyword_artid ON article_keyword(article_id)`,

		`CREATE TABLE version (ver INTEGER NOT NULL)`,
		fmt.Sprintf(`INSERT INTO version (ver) VALUES (%d)`, schemaVer),
	}

	for _, stmt := range stmts {
		_, err := ss.db.Exec(stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

// schemaVersion returns 0 for an empty database.
func (ss *SQLStore) schemaVersion() (int, error) {
	var n int
	err := ss.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='version'`).Scan(&n)
	if err != nil {
		// not sqlite - see if the version table is there at all
		var ver int
		err2 := ss.db.QueryRow(`SELECT MAX(ver) FROM version`).Scan(&ver)
		if err2 != nil {
			return 0, nil
		}
		return ver, nil
	}
	if n == 0 {
		return 0, nil
	}
	var ver int
	err = ss.db.QueryRow(`SELECT MAX(ver) FROM version`).Scan(&ver)
	if err != nil {
		return 0, err
	}
	return ver, nil
}
