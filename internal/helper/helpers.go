package helper

import (
	"fmt"
	"net/http"
	"sync"
)

// ErrorReporter is the subset of the error handler the helper needs.
// Declared here to keep the dependency one-way.
type ErrorReporter interface {
	ReportServerError(r *http.Request, err error)
}

type HelperRepository struct {
	baseUrl     *string
	WG          *sync.WaitGroup
	errReporter ErrorReporter
}

func New(baseUrl *string, wg *sync.WaitGroup, errReporter ErrorReporter) *HelperRepository {
	return &HelperRepository{
		baseUrl:     baseUrl,
		WG:          wg,
		errReporter: errReporter,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn in a goroutine that is tracked by the application
// wait group, so graceful shutdown waits for audit logs and notifications
// that are still in flight.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil {
				h.errReporter.ReportServerError(r, fmt.Errorf("%s", err))
			}
		}()

		err := fn()
		if err != nil {
			h.errReporter.ReportServerError(r, err)
		}
	}()
}
