package mw

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// generationRetention bounds how long an invalidation is remembered. A
// response that takes longer to compute may be stored stale.
const generationRetention = 10 * time.Minute

// ResponseCache holds cached responses. Invalidate drops an entry and also
// keeps any response for the same key that is still being computed from
// being stored.
type ResponseCache struct {
	mu      sync.Mutex
	entries *cache.Cache
	gens    *cache.Cache // key -> uint64 invalidation count
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: cache.New(ttl, 2*ttl),
		gens:    cache.New(generationRetention, generationRetention),
	}
}

// Invalidate drops the entry for key.
func (rc *ResponseCache) Invalidate(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gens.SetDefault(key, rc.generationLocked(key)+1)
	rc.entries.Delete(key)
}

// Len reports the number of cached responses.
func (rc *ResponseCache) Len() int {
	return rc.entries.ItemCount()
}

func (rc *ResponseCache) get(key string) (cachedResponse, bool) {
	v, ok := rc.entries.Get(key)
	if !ok {
		return cachedResponse{}, false
	}
	return v.(cachedResponse), true
}

func (rc *ResponseCache) generation(key string) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generationLocked(key)
}

func (rc *ResponseCache) generationLocked(key string) uint64 {
	if v, ok := rc.gens.Get(key); ok {
		return v.(uint64)
	}
	return 0
}

// storeIf stores resp unless key was invalidated after gen was read.
func (rc *ResponseCache) storeIf(key string, gen uint64, resp cachedResponse) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.generationLocked(key) != gen {
		return false
	}
	rc.entries.SetDefault(key, resp)
	return true
}

// KeyFunc names the cache entry of a request. An empty key bypasses the
// cache.
type KeyFunc func(c *gin.Context) string

// Cache serves GET requests from rc under key(c) and stores successful
// responses.
func Cache(rc *ResponseCache, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		if cached, found := rc.get(k); found {
			for h, v := range cached.headers {
				c.Writer.Header()[h] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		gen := rc.generation(k)
		c.Writer.Header().Set("X-Cache", "MISS")
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if blw.Status() >= 200 && blw.Status() < 300 {
			headers := blw.Header().Clone()
			headers.Del("X-Cache")
			rc.storeIf(k, gen, cachedResponse{
				status:  blw.Status(),
				headers: headers,
				body:    blw.body.Bytes(),
			})
		}
	}
}
