package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// SQLStore stashes articles in an SQL database.
// Tested against sqlite3 and postgres.
type SQLStore struct {
	db         *sql.DB
	driverName string
	ErrLog     Logger
	DebugLog   Logger
}

// Which method to use to get last insert IDs
const (
	insDUNNO     = iota
	insRESULT    // use Result.LastInsertID()
	insRETURNING // use sql "RETURNING" clause
)

// eg "postgres", "postgres://username@localhost/dbname"
// eg "sqlite3", "/tmp/foo.db"
func New(driver string, connStr string) (*SQLStore, error) {
	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, err
	}
	return NewFromDB(driver, db)
}

func NewFromDB(driver string, db *sql.DB) (*SQLStore, error) {
	err := db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	ss := SQLStore{
		db:         db,
		driverName: driver,
		ErrLog:     nullLogger{},
		DebugLog:   nullLogger{},
	}

	err = ss.checkSchema()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ss, nil
}

// NewWithEnv is the same as New(), but if driver or connStr is missing,
// will try and read them from environment vars: NEWSTRAWL_DRIVER &
// NEWSTRAWL_DB. If both driver and NEWSTRAWL_DRIVER are empty, default
// is "sqlite3".
func NewWithEnv(driver string, connStr string) (*SQLStore, error) {
	if connStr == "" {
		connStr = os.Getenv("NEWSTRAWL_DB")
	}
	if driver == "" {
		driver = os.Getenv("NEWSTRAWL_DRIVER")
		if driver == "" {
			driver = "sqlite3"
		}
	}

	if connStr == "" {
		return nil, fmt.Errorf("no database specified (set NEWSTRAWL_DB?)")
	}

	return New(driver, connStr)
}

func (ss *SQLStore) Close() {
	if ss.db != nil {
		ss.db.Close()
		ss.db = nil
	}
}

func (ss *SQLStore) rebind(q string) string {
	return rebind(bindType(ss.driverName), q)
}

// can we use Result.LastInsertID() or do we need to fiddle the SQL?
func (ss *SQLStore) insertIDType() int {
	switch ss.driverName {
	case "postgres", "pgx", "pq-timeouts", "cloudsqlpostgres", "ql":
		return insRETURNING
	case "sqlite3", "mysql":
		return insRESULT
	default:
		return insDUNNO
	}
}

// Stash upserts a batch of articles, keyed on URL.
// An article whose URL is already stored replaces the stored copy -
// the pipeline is at-least-once, so redelivery has to be harmless.
func (ss *SQLStore) Stash(arts ...*Article) ([]int, error) {
	var err error
	var tx *sql.Tx
	tx, err = ss.db.Begin()
	if err != nil {
		return nil, err
	}

	defer func() {
		if err == nil {
			tx.Commit()
		} else {
			tx.Rollback()
		}
	}()

	ids := make([]int, 0, len(arts))
	for _, art := range arts {
		var artID int
		artID, err = ss.stashArticle(tx, art)
		if err != nil {
			return nil, err
		}
		ids = append(ids, artID)
	}
	return ids, nil
}

func (ss *SQLStore) stashArticle(tx *sql.Tx, art *Article) (int, error) {
	if art.URL == "" {
		return 0, fmt.Errorf("article has no url")
	}

	// already got it?
	artID := 0
	err := tx.QueryRow(ss.rebind(`SELECT id FROM article WHERE url=?`), art.URL).Scan(&artID)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}

	guessed := 0
	if art.DateGuessed {
		guessed = 1
	}

	if artID == 0 {
		// it's a new article
		q := `INSERT INTO article(url, title, content, published, date_guessed, source, relevance) VALUES(?,?,?,?,?,?,?)`
		if ss.insertIDType() == insRETURNING {
			err = tx.QueryRow(ss.rebind(q+` RETURNING id`),
				art.URL, art.Title, art.Content, nullTime(art.Published),
				guessed, art.Source, art.Relevance).Scan(&artID)
			if err != nil {
				return 0, err
			}
		} else {
			result, err := tx.Exec(ss.rebind(q),
				art.URL, art.Title, art.Content, nullTime(art.Published),
				guessed, art.Source, art.Relevance)
			if err != nil {
				return 0, err
			}
			tmpID, err := result.LastInsertId()
			if err != nil {
				return 0, err
			}
			artID = int(tmpID)
		}
	} else {
		q := `UPDATE article SET title=?, content=?, published=?, date_guessed=?, source=?, relevance=? WHERE id=?`
		_, err = tx.Exec(ss.rebind(q),
			art.Title, art.Content, nullTime(art.Published),
			guessed, art.Source, art.Relevance, artID)
		if err != nil {
			return 0, err
		}
		// replace old keywords
		_, err = tx.Exec(ss.rebind(`DELETE FROM article_keyword WHERE article_id=?`), artID)
		if err != nil {
			return 0, err
		}
	}

	for _, k := range art.Keywords {
		_, err = tx.Exec(ss.rebind(`INSERT INTO article_keyword(article_id,name) VALUES(?,?)`), artID, k)
		if err != nil {
			return 0, fmt.Errorf("failed adding keyword %s: %s", k, err)
		}
	}

	return artID, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// WhichAreNew filters a list of article URLs down to the ones not
// already stored.
func (ss *SQLStore) WhichAreNew(artURLs []string) ([]string, error) {
	stmt, err := ss.db.Prepare(ss.rebind(`SELECT id FROM article WHERE url=?`))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	newArts := []string{}
	for _, u := range artURLs {
		var artID int
		err = stmt.QueryRow(u).Scan(&artID)
		if err == sql.ErrNoRows {
			newArts = append(newArts, u)
		} else if err != nil {
			return nil, err
		}
	}
	return newArts, nil
}

// Build a WHERE clause from a filter.
func buildWhere(filt *Filter) (string, []interface{}) {
	params := []interface{}{}
	frags := []string{}

	if !filt.PubFrom.IsZero() {
		frags = append(frags, "a.published>=?")
		params = append(params, filt.PubFrom)
	}
	if !filt.PubTo.IsZero() {
		frags = append(frags, "a.published<?")
		params = append(params, filt.PubTo)
	}
	if !filt.AddedFrom.IsZero() {
		frags = append(frags, "a.added>=?")
		params = append(params, filt.AddedFrom)
	}
	if !filt.AddedTo.IsZero() {
		frags = append(frags, "a.added<?")
		params = append(params, filt.AddedTo)
	}
	if filt.SinceID > 0 {
		frags = append(frags, "a.id>?")
		params = append(params, filt.SinceID)
	}

	if len(filt.Sources) > 0 {
		foo := []string{}
		for _, src := range filt.Sources {
			foo = append(foo, "?")
			params = append(params, src)
		}
		frags = append(frags, "a.source IN ("+strings.Join(foo, ",")+")")
	}

	if len(filt.XSources) > 0 {
		foo := []string{}
		for _, src := range filt.XSources {
			foo = append(foo, "?")
			params = append(params, src)
		}
		frags = append(frags, "a.source NOT IN ("+strings.Join(foo, ",")+")")
	}

	var whereClause string
	if len(frags) > 0 {
		whereClause = "WHERE " + strings.Join(frags, " AND ")
	}
	return whereClause, params
}

func (ss *SQLStore) FetchCount(filt *Filter) (int, error) {
	whereClause, params := buildWhere(filt)
	q := `SELECT COUNT(*) FROM article a ` + whereClause
	var cnt int
	err := ss.db.QueryRow(ss.rebind(q), params...).Scan(&cnt)
	return cnt, err
}

type sqlArtIter struct {
	rows    *sql.Rows
	ss      *SQLStore
	current *Article
	err     error
}

func (ss *SQLStore) Fetch(filt *Filter) ArtIter {
	whereClause, params := buildWhere(filt)

	q := `SELECT a.id,a.url,a.title,a.content,a.published,a.date_guessed,a.source,a.relevance,a.added
	        FROM article a ` + whereClause + ` ORDER BY a.id`
	if filt.Count > 0 {
		q += fmt.Sprintf(" LIMIT %d", filt.Count)
	}

	ss.DebugLog.Printf("fetch: %s\n", q)
	ss.DebugLog.Printf("fetch params: %+v\n", params)

	rows, err := ss.db.Query(ss.rebind(q), params...)
	return &sqlArtIter{ss: ss, rows: rows, err: err}
}

func (it *sqlArtIter) Close() error {
	// may not even have got as far as initing rows!
	var err error
	if it.rows != nil {
		err = it.rows.Close()
		it.rows = nil
	}
	return err
}

func (it *sqlArtIter) Err() error {
	return it.err
}

// if it returns true there will be an article.
func (it *sqlArtIter) Next() bool {
	it.current = nil
	if it.err != nil {
		return false // no more, if we're in error state
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false // all done
	}

	art := &Article{}
	var published, added sql.NullTime
	var guessed int
	err := it.rows.Scan(&art.ID, &art.URL, &art.Title, &art.Content,
		&published, &guessed, &art.Source, &art.Relevance, &added)
	if err != nil {
		it.err = err
		return false
	}
	if published.Valid {
		art.Published = published.Time
	}
	if added.Valid {
		art.Added = added.Time
	}
	art.DateGuessed = guessed != 0

	keywords, err := it.ss.fetchKeywords(art.ID)
	if err != nil {
		it.err = err
		return false
	}
	art.Keywords = keywords

	it.current = art
	return true
}

func (it *sqlArtIter) Article() *Article {
	return it.current
}

func (ss *SQLStore) fetchKeywords(artID int) ([]string, error) {
	q := `SELECT name FROM article_keyword WHERE article_id=? ORDER BY id`
	rows, err := ss.db.Query(ss.rebind(q), artID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ss *SQLStore) Sources() ([]string, error) {
	rows, err := ss.db.Query(`SELECT DISTINCT source FROM article ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchSummary returns per-source article counts grouped by day of
// publication.
func (ss *SQLStore) FetchSummary(filt *Filter) ([]SourceStat, error) {
	whereClause, params := buildWhere(filt)

	q := `SELECT DATE(a.published) AS day, a.source, COUNT(*)
	    FROM article a ` + whereClause + ` GROUP BY day, a.source ORDER BY day ASC, a.source ASC`

	ss.DebugLog.Printf("summary: %s\n", q)

	rows, err := ss.db.Query(ss.rebind(q), params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SourceStat{}
	for rows.Next() {
		stat := SourceStat{}
		var day sql.NullString
		if err := rows.Scan(&day, &stat.Source, &stat.Count); err != nil {
			return nil, err
		}
		// sqlite3 driver can't scan DATE() straight into a time.Time,
		// so go via string.
		if day.Valid {
			t, err := time.Parse("2006-01-02", day.String)
			if err == nil {
				stat.Date = t
			}
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
