package schedule

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"schedcal/core/model"
	"schedcal/core/scheduler"
)

// NewHandler returns an HTTP handler accepting scheduling requests via
// POST /api/schedule. The request body is the appointment document; the
// response is the filled/unfilled schedule.
func NewHandler(engine *scheduler.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in, err := scheduler.ParseInput(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		res, err := engine.Run(r.Context(), in)
		if err != nil {
			status := http.StatusInternalServerError
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(scheduler.BuildOutput(res)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
