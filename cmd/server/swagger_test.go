package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSetupSwagger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("disabled without credentials", func(t *testing.T) {
		r := gin.New()
		SetupSwagger(r, &config.AuthConfig{})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("serves the document behind basic auth", func(t *testing.T) {
		r := gin.New()
		SetupSwagger(r, &config.AuthConfig{BasicUser: "ops", BasicPassword: "secret"})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, openAPIPath, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodGet, openAPIPath, nil)
		req.SetBasicAuth("ops", "secret")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/views/{customPath}")
	})
}
