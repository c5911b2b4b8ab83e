package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the router. Zero values disable the optional parts.
type Options struct {
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RateLimiter    *ratelimit.KeyedLimiter
	RequestTimeout time.Duration
	CORSOrigin     string
}

// SetupRouter sets up the Gin router
func SetupRouter(h *Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(opts.Metrics), CORS(opts.CORSOrigin))
	if opts.RequestTimeout > 0 {
		router.Use(Timeout(opts.RequestTimeout))
	}

	router.GET("/healthz", h.Health)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	user := router.Group("/user")
	{
		user.POST("", h.CreateUser)
		user.GET("/:id", h.GetUser)
		user.POST("/username-change-challenge", RateLimit(opts.RateLimiter), h.UsernameChangeChallenge)
		user.POST("/change-username", h.ChangeUsername)
		user.POST("/send-nft-request", h.SendNFTRequest)
	}

	if h.portfolio != nil {
		wallet := router.Group("/wallet/:address")
		{
			wallet.GET("/balance", h.NativeBalance)
			wallet.GET("/tokens", h.TokenBalances)
			wallet.GET("/nfts", h.NFTs)
		}
	}

	return router
}
