package middleware

import (
	"net/http"
	"sync"
	"time"

	"almacenpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window limiter per IP ───────────────────────────────────────────────

type ventanaIP struct {
	count     int
	windowEnd time.Time
}

type limitador struct {
	mu      sync.Mutex
	entries map[string]*ventanaIP
	limit   int
	window  time.Duration
	now     func() time.Time
	purge   sync.Once
}

func nuevoLimitador(limit int, window time.Duration) *limitador {
	return &limitador{entries: map[string]*ventanaIP{}, limit: limit, window: window, now: time.Now}
}

// permitir counts one hit for ip and reports whether it is within the limit,
// along with the end of the current window.
func (l *limitador) permitir(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &ventanaIP{windowEnd: now.Add(l.window)}
		l.entries[ip] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purgar drops expired windows so IPs that never return do not accumulate.
func (l *limitador) purgar() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for ip, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, ip)
			n++
		}
	}
	return n
}

func (l *limitador) iniciarPurga() {
	l.purge.Do(func() {
		go func() {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for range ticker.C {
				if n := l.purgar(); n > 0 {
					log.Debug().Int("purged", n).Msg("rate limiter entries purged")
				}
			}
		}()
	})
}

const purgeInterval = 5 * time.Minute

func (l *limitador) handler(msg string) gin.HandlerFunc {
	l.iniciarPurga()
	return func(c *gin.Context) {
		ok, windowEnd := l.permitir(c.ClientIP())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return nuevoLimitador(20, time.Minute).handler("Demasiados intentos de login. Intente en 1 minuto.")
}

// RateLimiter is the general API limiter: limit requests per window per IP.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return nuevoLimitador(limit, window).handler("Demasiadas solicitudes. Intente nuevamente en un momento.")
}
