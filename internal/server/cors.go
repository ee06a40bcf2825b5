package server

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

var (
	trueBytes     = []byte("true")
	asteriskBytes = []byte("*")
	optionsBytes  = []byte("OPTIONS")
	varyOrigin    = []byte("Origin")
	varyPreflight = []byte("Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
)

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type CORSMiddleware struct {
	logger     types.Logger
	corsConfig *CORSConfig
	name       string
	weight     int

	allowsAll         bool
	allowedOriginsMap map[string]bool
	wildcardDomains   []string
	allowedMethods    []byte
	allowedHeaders    []byte
	exposedHeaders    []byte
	maxAge            []byte
	errorResponse     []byte
}

func NewCORSMiddleware(logger types.Logger, item *types.MiddlewareItemConfig) *CORSMiddleware {
	corsConfig := &CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{},
		AllowCredentials: false,
		MaxAge:           86400,
	}

	if item.Params != nil {
		if err := utils.Remarshal(item.Params, corsConfig); err != nil {
			logger.Error("Failed to unmarshal CORS middleware config", zap.Error(err))
		}
	}

	cm := &CORSMiddleware{
		logger:        logger,
		corsConfig:    corsConfig,
		name:          "cors",
		weight:        item.Weight,
		errorResponse: []byte(`{"error":"Origin not allowed"}`),
	}

	cm.precompile()

	return cm
}

func (c *CORSMiddleware) Name() string { return c.name }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	origin := ctx.Request.Header.Peek("Origin")
	if len(origin) == 0 {
		next(ctx)
		return
	}

	if !c.originAllowed(origin) {
		c.logger.Warn("CORS request blocked",
			zap.ByteString("origin", origin),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))

		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetBody(c.errorResponse)
		return
	}

	if bytes.Equal(ctx.Method(), optionsBytes) {
		c.writePreflight(ctx, origin)
		return
	}

	c.addHeaders(ctx, origin)
	next(ctx)
}

func (c *CORSMiddleware) originAllowed(origin []byte) bool {
	if c.allowsAll {
		return true
	}

	originStr := string(origin)
	if c.allowedOriginsMap[originStr] {
		return true
	}

	for _, domain := range c.wildcardDomains {
		if matchesWildcardDomain(originStr, domain) {
			return true
		}
	}

	return false
}

func matchesWildcardDomain(origin, domain string) bool {
	if origin == domain {
		return true
	}

	suffix := "." + domain
	if strings.HasSuffix(origin, suffix) {
		prefixLen := len(origin) - len(suffix)
		if prefixLen > 0 {
			return origin[prefixLen-1] != '.'
		}
	}

	return false
}

func (c *CORSMiddleware) addHeaders(ctx *fasthttp.RequestCtx, origin []byte) {
	if c.allowsAll {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", asteriskBytes)
	} else {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", origin)
	}

	if len(c.exposedHeaders) > 0 {
		ctx.Response.Header.SetBytesV("Access-Control-Expose-Headers", c.exposedHeaders)
	}

	if c.corsConfig.AllowCredentials {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Credentials", trueBytes)
	}

	ctx.Response.Header.AddBytesV("Vary", varyOrigin)
}

func (c *CORSMiddleware) writePreflight(ctx *fasthttp.RequestCtx, origin []byte) {
	ctx.SetStatusCode(fasthttp.StatusOK)

	if c.allowsAll {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", asteriskBytes)
	} else {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", origin)
	}

	ctx.Response.Header.SetBytesV("Access-Control-Allow-Methods", c.allowedMethods)
	ctx.Response.Header.SetBytesV("Access-Control-Allow-Headers", c.allowedHeaders)
	ctx.Response.Header.SetBytesV("Access-Control-Max-Age", c.maxAge)

	if c.corsConfig.AllowCredentials {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Credentials", trueBytes)
	}

	ctx.Response.Header.SetBytesV("Vary", varyPreflight)
	ctx.SetBody(nil)
}

func (c *CORSMiddleware) precompile() {
	c.allowsAll = len(c.corsConfig.AllowedOrigins) == 1 && c.corsConfig.AllowedOrigins[0] == "*"

	if !c.allowsAll {
		c.allowedOriginsMap = make(map[string]bool, len(c.corsConfig.AllowedOrigins))
		c.wildcardDomains = make([]string, 0)

		for _, origin := range c.corsConfig.AllowedOrigins {
			if strings.HasPrefix(origin, "*.") {
				c.wildcardDomains = append(c.wildcardDomains, strings.TrimPrefix(origin, "*."))
			} else {
				c.allowedOriginsMap[origin] = true
			}
		}
	}

	c.allowedMethods = []byte(strings.Join(c.corsConfig.AllowedMethods, ", "))
	c.allowedHeaders = []byte(strings.Join(c.corsConfig.AllowedHeaders, ", "))
	c.exposedHeaders = []byte(strings.Join(c.corsConfig.ExposedHeaders, ", "))
	c.maxAge = []byte(strconv.Itoa(c.corsConfig.MaxAge))
}
