package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rotationctrl/internal/logging"
)

const maxLogTail = 5000

type LogsResponse struct {
	NowUTC  time.Time `json:"now_utc"`
	Dropped uint64    `json:"dropped"`
	Lines   []string  `json:"lines"`
}

// logsHandler serves the newest lines of the in-memory log.
//
//	tail=N       number of lines, default 200
//	match=text   keep only lines containing text, e.g. component=rotation
//	format=text  plain text instead of JSON
func logsHandler(b *logging.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		tail, err := parseTail(q.Get("tail"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lines, dropped := b.Snapshot(tail)
		if match := q.Get("match"); match != "" {
			kept := lines[:0]
			for _, l := range lines {
				if strings.Contains(l, match) {
					kept = append(kept, l)
				}
			}
			lines = kept
		}

		w.Header().Set("Cache-Control", "no-store")
		if !strings.EqualFold(q.Get("format"), "text") {
			writeJSON(w, http.StatusOK, LogsResponse{NowUTC: time.Now().UTC(), Dropped: dropped, Lines: lines})
			return
		}
		var sb strings.Builder
		if dropped > 0 {
			sb.WriteString("[dropped=" + strconv.FormatUint(dropped, 10) + "]\n")
		}
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteByte('\n')
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(sb.String()))
	}
}

func parseTail(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 200, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > maxLogTail {
		return 0, errTail
	}
	return v, nil
}

var errTail = errors.New("tail must be an integer in [1,5000]")
