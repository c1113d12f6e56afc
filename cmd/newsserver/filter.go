package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"newstrawl/store"
)

const yyyymmddLayout = "2006-01-02"

func parseTime(in string) (time.Time, error) {
	t, err := time.ParseInLocation(time.RFC3339, in, time.UTC)
	if err == nil {
		return t, nil
	}

	// short form - assumes you want utc days rather than local days...
	t, err = time.ParseInLocation(yyyymmddLayout, in, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time format")
	}
	return t, nil
}

// getFilter builds a store filter from the request params.
func getFilter(r *http.Request) (*store.Filter, error) {
	maxCount := 20000

	filt := &store.Filter{}

	if r.FormValue("pubfrom") != "" {
		t, err := parseTime(r.FormValue("pubfrom"))
		if err != nil {
			return nil, fmt.Errorf("bad 'pubfrom' param")
		}
		filt.PubFrom = t
	}
	if r.FormValue("pubto") != "" {
		t, err := parseTime(r.FormValue("pubto"))
		if err != nil {
			return nil, fmt.Errorf("bad 'pubto' param")
		}
		filt.PubTo = t
	}
	if r.FormValue("addedfrom") != "" {
		t, err := parseTime(r.FormValue("addedfrom"))
		if err != nil {
			return nil, fmt.Errorf("bad 'addedfrom' param")
		}
		filt.AddedFrom = t
	}
	if r.FormValue("addedto") != "" {
		t, err := parseTime(r.FormValue("addedto"))
		if err != nil {
			return nil, fmt.Errorf("bad 'addedto' param")
		}
		filt.AddedTo = t
	}

	if r.FormValue("since_id") != "" {
		sinceID, err := strconv.Atoi(r.FormValue("since_id"))
		if err != nil {
			return nil, fmt.Errorf("bad 'since_id' param")
		}
		if sinceID > 0 {
			filt.SinceID = sinceID
		}
	}

	if r.FormValue("count") != "" {
		cnt, err := strconv.Atoi(r.FormValue("count"))
		if err != nil {
			return nil, fmt.Errorf("bad 'count' param")
		}
		filt.Count = cnt
	} else {
		// default to max
		filt.Count = maxCount
	}

	// enforce max count
	if filt.Count > maxCount {
		return nil, fmt.Errorf("'count' too high (max %d)", maxCount)
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("bad params")
	}
	if srcs, got := r.Form["src"]; got {
		filt.Sources = srcs
	}
	if xsrcs, got := r.Form["xsrc"]; got {
		filt.XSources = xsrcs
	}

	return filt, nil
}
