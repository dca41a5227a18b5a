package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/mindengage-coderunner/internal/sync"
)

const maxEventPage = 500

// GET /events?since=<seq>&limit=<n>
// Pages through the event log for downstream consumers such as gradebooks.
func ListEventsHandler(feed syncx.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		since, err := queryInt(q.Get("since"), 0)
		if err != nil || since < 0 {
			http.Error(w, "bad since", http.StatusBadRequest)
			return
		}
		limit, err := queryInt(q.Get("limit"), 100)
		if err != nil || limit <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		if limit > maxEventPage {
			limit = maxEventPage
		}
		events, err := feed.Since(r.Context(), since, int(limit))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func queryInt(v string, def int64) (int64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
