package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = New(internal.MetricsConfig{Namespace: "fleet"})
	})

	It("should label requests with the route pattern, not the raw path", func() {
		// Given
		r := chi.NewRouter()
		r.Use(m.Middleware)
		r.Get("/vehicles/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		// When
		for _, path := range []string{"/vehicles/1", "/vehicles/2"} {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		}

		// Then
		Expect(testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/vehicles/{id}", "404"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.httpInfl)).To(Equal(0.0))
	})

	It("should count notification outcomes and deletion reviews", func() {
		m.NotificationDone("smtp", nil)
		m.NotificationDone("smtp", errors.New("refused"))
		m.DeletionReviewed("approved", "vehicle")

		Expect(testutil.ToFloat64(m.notificationCnt.WithLabelValues("smtp", "sent"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.notificationCnt.WithLabelValues("smtp", "failed"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(m.deletionReviews.WithLabelValues("approved", "vehicle"))).To(Equal(1.0))
	})

	It("should be safe to call on a nil collector", func() {
		var none *Metrics

		Expect(func() {
			none.NotificationDone("log", nil)
			none.DeletionReviewed("rejected", "user")
		}).NotTo(Panic())
	})

	It("should expose the namespaced series", func() {
		m.DeletionReviewed("rejected", "user")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`fleet_deletion_reviews_total{decision="rejected",module="user"} 1`))
	})
})
