package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mission-gateway/internal/models"
	"github.com/noah-isme/mission-gateway/internal/service"
)

func requestLabels(t *testing.T, metricsSvc *service.MetricsService) []map[string]string {
	t.Helper()
	families, err := metricsSvc.Registry().Gather()
	require.NoError(t, err)
	var out []map[string]string
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			out = append(out, labels)
		}
	}
	return out
}

func TestMetricsLabelsRouteAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metricsSvc := service.NewMetricsService()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Role") != "" {
			c.Set(ContextSessionKey, &models.Session{ID: "s", Role: models.UserRole(c.GetHeader("X-Role"))})
		}
		c.Next()
	})
	r.Use(Metrics(metricsSvc, "/health"))
	r.GET("/missions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/missions/7", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/no/such/path", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	teacher := httptest.NewRequest(http.MethodGet, "/missions/8", nil)
	teacher.Header.Set("X-Role", string(models.RoleTeacher))
	r.ServeHTTP(httptest.NewRecorder(), teacher)

	labels := requestLabels(t, metricsSvc)
	require.Len(t, labels, 3)
	routes := map[string]string{}
	for _, l := range labels {
		routes[l["route"]+"|"+l["role"]] = l["status"]
	}
	assert.Equal(t, "200", routes["/missions/:id|anonymous"])
	assert.Equal(t, "200", routes["/missions/:id|"+string(models.RoleTeacher)])
	assert.Equal(t, "404", routes[unmatchedRoute+"|anonymous"])
}
