package handler

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jack/golang-campaign-redirect-service/internal/model"
	"github.com/jack/golang-campaign-redirect-service/internal/service"
)

var redirectTemplates = template.Must(template.New("meta_refresh").Parse(`<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<meta name="referrer" content="no-referrer">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>Redirecting</title>
</head><body></body></html>
`))

func init() {
	template.Must(redirectTemplates.New("double_meta_refresh").Parse(`<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<meta name="referrer" content="no-referrer">
<meta http-equiv="refresh" content="0;url={{.}}">
<title>Redirecting</title>
<script>window.location.replace({{.}});</script>
</head><body>
<noscript><meta http-equiv="refresh" content="0;url={{.}}"></noscript>
</body></html>
`))
}

// forcedHeaders is sent with http2_forced_307 and mirrors a CDN edge response.
var forcedHeaders = map[string]string{
	"Server":          "cloudflare",
	"CF-Cache-Status": "DYNAMIC",
	"Cache-Control":   "private, max-age=0, no-store, no-cache, must-revalidate, post-check=0, pre-check=0",
	"Expires":         "Thu, 01 Jan 1970 00:00:01 GMT",
	"Vary":            "Accept-Encoding",
	"Alt-Svc":         `h3=":443"; ma=86400`,
}

// RedirectByPath dispatches GET /views/:customPath
func (h *Handler) RedirectByPath(c *gin.Context) {
	path := c.Param("customPath")
	if path == "" {
		respondBadRequest(c, "Custom path is required")
		return
	}

	target, err := h.service.ResolvePath(c.Request.Context(), path)
	if err != nil {
		respondError(c, "resolve redirect", err)
		return
	}
	h.redirect(c, target)
}

// RedirectByIDs dispatches GET /r/:campaignId/:urlId
func (h *Handler) RedirectByIDs(c *gin.Context) {
	campaignID, ok := paramID(c, "campaignId")
	if !ok {
		return
	}
	urlID, ok := paramID(c, "urlId")
	if !ok {
		return
	}

	target, err := h.service.ResolveIDs(c.Request.Context(), campaignID, urlID)
	if err != nil {
		respondError(c, "resolve redirect", err)
		return
	}
	h.redirect(c, target)
}

// redirect records the click in the background and writes exactly one response in
// the campaign's redirect style.
func (h *Handler) redirect(c *gin.Context, target *service.Target) {
	h.service.RecordClick(target, service.Visit{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	})

	location := target.URL.TargetURL

	switch target.Campaign.RedirectMethod {
	case model.RedirectMetaRefresh:
		c.Header("Cache-Control", "no-store")
		c.HTML(http.StatusOK, "meta_refresh", location)
	case model.RedirectDoubleMetaRefresh:
		c.Header("Cache-Control", "no-store")
		c.HTML(http.StatusOK, "double_meta_refresh", location)
	case model.RedirectHTTP307:
		c.Redirect(http.StatusTemporaryRedirect, location)
	case model.RedirectHTTP2Temporary307:
		c.Header("Cache-Control", "no-store")
		c.Header("Alt-Svc", `h2=":443"; ma=86400`)
		c.Header("X-Protocol", "HTTP/2")
		c.Redirect(http.StatusTemporaryRedirect, location)
	case model.RedirectHTTP2Forced307:
		for k, v := range forcedHeaders {
			c.Header(k, v)
		}
		c.Header("CF-RAY", rayID())
		c.Redirect(http.StatusTemporaryRedirect, location)
	default:
		c.Redirect(http.StatusFound, location)
	}
}

func rayID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16] + "-LAX"
}
