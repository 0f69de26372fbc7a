package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/golang-campaign-redirect-service/api"
	"github.com/jack/golang-campaign-redirect-service/internal/config"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const openAPIPath = "/docs/openapi.yaml"

// SetupSwagger 掛上 API 文件與 Swagger UI，兩者都需要 Basic Auth。
// 未設定帳密時整個 /docs 回 403。
func SetupSwagger(router *gin.Engine, auth *config.AuthConfig) {
	if auth.BasicUser == "" || auth.BasicPassword == "" {
		router.GET("/docs/*any", func(c *gin.Context) {
			c.String(http.StatusForbidden, "API docs are disabled. Set AUTH_BASIC_USER and AUTH_BASIC_PASSWORD to enable.")
		})
		return
	}

	docs := router.Group("/docs", gin.BasicAuthForRealm(gin.Accounts{
		auth.BasicUser: auth.BasicPassword,
	}, "campaign-redirect-docs"))

	ui := ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(openAPIPath),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.DocExpansion("list"),
	)

	// openapi.yaml 和 UI 共用 /docs/*any，gin 不允許同層再註冊靜態路徑
	docs.GET("/*any", func(c *gin.Context) {
		if c.Request.URL.Path == openAPIPath {
			c.Data(http.StatusOK, "application/yaml", api.OpenAPI)
			return
		}
		ui(c)
	})
}
