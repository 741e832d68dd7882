package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"

	"chambersim.ai/internal/persistence/r2s3"
	"chambersim.ai/internal/transport/observer"
)

func newMux(obs *observer.Server, idx runtimeIndex, mirror *r2s3.Mirror, enablePprof bool, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP chambersim_observer_sessions Observer connections currently streaming.\n")
		fmt.Fprintf(rw, "# TYPE chambersim_observer_sessions gauge\n")
		fmt.Fprintf(rw, "chambersim_observer_sessions %d\n", obs.Sessions())

		if idx != nil {
			fmt.Fprintf(rw, "# HELP chambersim_index_dropped_total Run rows dropped by the index writer.\n")
			fmt.Fprintf(rw, "# TYPE chambersim_index_dropped_total counter\n")
			fmt.Fprintf(rw, "chambersim_index_dropped_total %d\n", idx.Dropped())
		}
		if mirror != nil {
			writeMirrorMetrics(rw, mirror.Stats())
		}
	})
	mux.HandleFunc("/v1/runs", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if idx == nil {
			http.Error(rw, "run index disabled", http.StatusServiceUnavailable)
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		rows, err := idx.Recent(r.Context(), limit)
		if err != nil {
			logger.Printf("list runs: %v", err)
			http.Error(rw, "index query failed", http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"runs": rows})
	})
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/observe", obs.WSHandler())
	return mux
}

func writeMirrorMetrics(w io.Writer, st r2s3.Stats) {
	fmt.Fprintf(w, "# HELP chambersim_archive_queue_depth Frame logs waiting for upload.\n")
	fmt.Fprintf(w, "# TYPE chambersim_archive_queue_depth gauge\n")
	fmt.Fprintf(w, "chambersim_archive_queue_depth %d\n", st.QueueDepth)

	fmt.Fprintf(w, "# HELP chambersim_archive_uploads_total Frame log uploads by result.\n")
	fmt.Fprintf(w, "# TYPE chambersim_archive_uploads_total counter\n")
	fmt.Fprintf(w, "chambersim_archive_uploads_total{result=%q} %d\n", "ok", st.UploadSuccessTotal)
	fmt.Fprintf(w, "chambersim_archive_uploads_total{result=%q} %d\n", "failed", st.UploadFailTotal)
	fmt.Fprintf(w, "chambersim_archive_uploads_total{result=%q} %d\n", "dropped", st.DroppedTotal)
}
