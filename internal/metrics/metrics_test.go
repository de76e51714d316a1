package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/exams/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := RequestCounter.WithLabelValues(http.MethodGet, "/exams/:id", "200")
	before := counterValue(t, counter)
	for _, path := range []string{"/exams/1", "/exams/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, counter)-before)
}

func TestObserveSubmission_LowercasesType(t *testing.T) {
	counter := SubmissionCounter.WithLabelValues("reading")
	before := counterValue(t, counter)
	ObserveSubmission("Reading", 6.5)
	assert.Equal(t, 1.0, counterValue(t, counter)-before)
}
