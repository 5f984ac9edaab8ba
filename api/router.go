package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"order-display/services"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// RateRPS limits API requests per client IP; zero or less disables limiting.
	RateRPS   float64
	RateBurst int
	StaticDir string

	// PingInterval is how often idle display sockets are pinged.
	PingInterval time.Duration
}

// Server is the HTTP and WebSocket front of one OrderController.
type Server struct {
	orders   *services.OrderController
	log      *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(orders *services.OrderController, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	return &Server{
		orders: orders,
		log:    log.Named("api"),
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Displays are served from arbitrary local hosts.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware stack:
	// 1) request id + real client ip
	// 2) access log
	// 3) panic recovery
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateRPS > 0 {
			r.Use(newRateLimiter(s.opts.RateRPS, s.opts.RateBurst).middleware)
		}
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
				next.ServeHTTP(w, r)
			})
		})

		r.Get("/order", s.handleCurrent)
		r.Post("/order/items", s.handleAddItem)
		r.Post("/order/items/remove", s.handleRemoveItem)
		r.Post("/order/items/quantity", s.handleUpdateQuantity)
		r.Post("/order/discount", s.handleDiscount)
		r.Post("/order/save-completed", s.handleSaveCompleted)
		r.Post("/order/complete", s.handleComplete)
		r.Post("/order/finalize", s.handleFinalize)
		r.Post("/order/cancel", s.handleCancel)

		r.Post("/orders", s.handleInject)
		r.Get("/orders/history", s.handleHistory)
		r.Get("/orders/history/{orderId}", s.handleHistoryRecord)
		r.Post("/orders/{orderId}/status", s.handleStatus)
		r.Post("/orders/{orderId}/custom-status", s.handleStatus)

		r.Post("/display/clear", s.handleClear)
	})

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
