package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"

	"newstrawl/store"
)

type Logger interface {
	Printf(format string, v ...interface{})
}

type nullLogger struct{}

func (l nullLogger) Printf(format string, v ...interface{}) {
}

func EmitError(w http.ResponseWriter, statusCode int) {
	txt := fmt.Sprintf("%d - %s", statusCode, http.StatusText(statusCode))
	http.Error(w, txt, statusCode)
}

type NewsServer struct {
	ErrLog  Logger
	InfoLog Logger
	Port    int
	Prefix  string

	db store.Store
}

func NewServer(db store.Store, port int, prefix string, infoLog Logger, errLog Logger) *NewsServer {
	return &NewsServer{db: db, Port: port, Prefix: prefix, InfoLog: infoLog, ErrLog: errLog}
}

func (srv *NewsServer) Run() error {
	http.Handle(srv.Prefix+"/api/slurp", handlers.CompressHandler(
		http.HandlerFunc(srv.slurpHandler)))

	http.Handle(srv.Prefix+"/api/sources", handlers.CompressHandler(
		http.HandlerFunc(srv.sourcesHandler)))

	http.Handle(srv.Prefix+"/api/summary", handlers.CompressHandler(
		http.HandlerFunc(srv.summaryHandler)))

	http.HandleFunc(srv.Prefix+"/api/count", srv.countHandler)

	srv.InfoLog.Printf("Started at localhost:%d%s/\n", srv.Port, srv.Prefix)
	return http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), nil)
}

// Msg is one object in the slurp stream: an article, an error, or a
// since_id continuation marker.
type Msg struct {
	Article *store.Article `json:"article,omitempty"`
	Error   string         `json:"error,omitempty"`
	Next    struct {
		SinceID int `json:"since_id,omitempty"`
	} `json:"next,omitempty"`
}

// implement the main article slurp API
func (srv *NewsServer) slurpHandler(w http.ResponseWriter, r *http.Request) {
	filt, err := getFilter(r)
	if err != nil {
		EmitError(w, 400)
		return
	}

	err, artCnt, byteCnt := srv.performSlurp(w, filt)
	status := "OK"
	if err != nil {
		status = fmt.Sprintf("FAIL (%s)", err)
	}

	srv.InfoLog.Printf("%s %s %d arts %d bytes %s\n", r.RemoteAddr, status, artCnt, byteCnt, filt.Describe())
}

// helper fn
func writeMsg(w http.ResponseWriter, msg *Msg) (int, error) {
	outBuf, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("json encoding error: %s", err)
	}
	n, err := w.Write(outBuf)
	if err != nil {
		return n, fmt.Errorf("write error: %s", err)
	}
	return n, nil
}

func (srv *NewsServer) performSlurp(w http.ResponseWriter, filt *store.Filter) (error, int, int) {
	artCnt := 0
	byteCnt := 0
	maxID := 0

	it := srv.db.Fetch(filt)
	defer it.Close()
	for it.Next() {
		art := it.Article()
		msg := Msg{Article: art}
		n, err := writeMsg(w, &msg)
		if err != nil {
			return err, artCnt, byteCnt
		}
		byteCnt += n
		artCnt++
		if art.ID > maxID {
			maxID = art.ID
		}
	}
	if err := it.Err(); err != nil {
		// some sort of database error... log and send it on to the client
		msg := Msg{Error: fmt.Sprintf("fetch error: %s", err)}
		srv.ErrLog.Printf("%s\n", msg.Error)
		n, werr := writeMsg(w, &msg)
		if werr != nil {
			return werr, artCnt, byteCnt
		}
		byteCnt += n
		return err, artCnt, byteCnt
	}

	// looks like more articles to fetch?
	if artCnt == filt.Count {
		// send a "Next" message with a new since_id
		msg := Msg{}
		msg.Next.SinceID = maxID
		n, err := writeMsg(w, &msg)
		if err != nil {
			return err, artCnt, byteCnt
		}
		byteCnt += n
	}

	return nil, artCnt, byteCnt
}

// implement the source list API
func (srv *NewsServer) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	srcs, err := srv.db.Sources()
	if err != nil {
		srv.ErrLog.Printf("/sources DB Error: %s\n", err)
		EmitError(w, 500)
		return
	}

	out := struct {
		Sources []string `json:"sources"`
	}{
		srcs,
	}

	outBuf, err := json.Marshal(out)
	if err != nil {
		srv.ErrLog.Printf("/sources json encoding error: %s\n", err)
		EmitError(w, 500)
		return
	}
	_, err = w.Write(outBuf)
	if err != nil {
		srv.ErrLog.Printf("Write error: %s\n", err)
		return
	}

	srv.InfoLog.Printf("%s sources\n", r.RemoteAddr)
}

// implement the summary API
func (srv *NewsServer) summaryHandler(w http.ResponseWriter, r *http.Request) {
	filt, err := getFilter(r)
	if err != nil {
		srv.ErrLog.Printf("/summary bad params: %s\n", err)
		EmitError(w, 400)
		return
	}

	rawCounts, err := srv.db.FetchSummary(filt)
	if err != nil {
		srv.ErrLog.Printf("/summary DB error: %s\n", err)
		EmitError(w, 500)
		return
	}

	cooked := make(map[string]map[string]int)
	for _, raw := range rawCounts {
		mm, ok := cooked[raw.Source]
		if !ok {
			mm = make(map[string]int)
			cooked[raw.Source] = mm
		}
		mm[raw.Date.Format(yyyymmddLayout)] = raw.Count
	}

	out := struct {
		Counts map[string]map[string]int `json:"counts"`
	}{
		cooked,
	}

	outBuf, err := json.Marshal(out)
	if err != nil {
		srv.ErrLog.Printf("/summary json encoding error: %s\n", err)
		EmitError(w, 500)
		return
	}
	_, err = w.Write(outBuf)
	if err != nil {
		srv.ErrLog.Printf("Write error: %s\n", err)
		return
	}

	srv.InfoLog.Printf("%s summary (%d rows)\n", r.RemoteAddr, len(rawCounts))
}

type ArticleCountResult struct {
	ArticleCount int `json:"article_count"`
}

// implement api/count
func (srv *NewsServer) countHandler(w http.ResponseWriter, r *http.Request) {
	filt, err := getFilter(r)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	totalArts, err := srv.db.FetchCount(filt)
	if err != nil {
		http.Error(w, fmt.Sprintf("DB error: %s", err), 500)
		return
	}

	msg := ArticleCountResult{ArticleCount: totalArts}
	outBuf, err := json.Marshal(msg)
	if err != nil {
		errMsg := fmt.Sprintf("json encoding error: %s", err)
		srv.ErrLog.Printf("%s\n", errMsg)
		http.Error(w, errMsg, 500)
		return
	}
	_, err = w.Write(outBuf)
	if err != nil {
		srv.ErrLog.Printf("write error: %s\n", err)
		return
	}

	srv.InfoLog.Printf("%s /api/count OK %d arts %s\n", r.RemoteAddr, totalArts, filt.Describe())
}
