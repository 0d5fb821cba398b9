package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/smart-seat-booking/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        if cw.limit <= 0 {
            cw.buf.Write(b)
        } else if remain > 0 {
            if int64(len(b)) <= remain {
                cw.buf.Write(b)
            } else {
                cw.buf.Write(b[:remain])
            }
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// ResponseCache caches chart reads per session in Redis.  Every cached path
// of a session is a Redis hash whose fields are the raw query strings, so a
// write can drop all renderings of the chart with a single DEL.
//
// Each session also has a version counter that every write bumps.  A read
// notes the version before running its handler and stores its response only
// if the version is unchanged, so a read that raced a write never caches the
// chart the write replaced.
type ResponseCache struct {
    cfg   config.CacheConfig
    rdb   *redis.Client
    alive func(session string) bool
}

// versionTTL bounds how long an idle session's version counter is kept.
const versionTTL = time.Hour

// storeScript writes ARGV[3] into field ARGV[2] of hash KEYS[1] with a TTL of
// ARGV[4] ms, but only while the version in KEYS[2] still equals ARGV[1].
var storeScript = redis.NewScript(`
local ver = redis.call('GET', KEYS[2])
if not ver then ver = '' end
if ver ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// NewResponseCache returns a cache; with a nil client or a disabled config
// both of its middlewares pass requests straight through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 30 * time.Second
    }
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

// WithSessionCheck makes the cache consult alive before serving a hit.  Hits
// for sessions it rejects are dropped and the request goes to the handler.
func (rc *ResponseCache) WithSessionCheck(alive func(session string) bool) *ResponseCache {
    rc.alive = alive
    return rc
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

// key builds the hash key for one session and request path.
func (rc *ResponseCache) key(session, path string) string {
    sum := sha1.Sum([]byte(path))
    return fmt.Sprintf("%s:%s:%x", rc.cfg.Prefix, session, sum[:])
}

func (rc *ResponseCache) versionKey(session string) string {
    return fmt.Sprintf("%s:ver:%s", rc.cfg.Prefix, session)
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// Middleware serves cached responses for the configured methods and stores
// successful responses, tagging them with an X-Cache header.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return passThrough
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            session := sessionOrAnon(c)
            key := rc.key(session, c.Request().URL.Path)
            field := c.Request().URL.RawQuery

            if bs, err := rc.rdb.HGet(ctx, key, field).Bytes(); err == nil {
                if rc.alive != nil && !rc.alive(session) {
                    rc.rdb.Del(ctx, key)
                    return next(c)
                }
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        // Echo sets Content-Length itself.
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            version, err := rc.rdb.Get(ctx, rc.versionKey(session)).Result()
            if err == redis.Nil {
                version, err = "", nil
            }
            if err != nil {
                c.Logger().Warnf("[cache] version session=%s: %v", session, err)
                return next(c)
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
            if err != nil {
                return nil
            }
            keys := []string{key, rc.versionKey(session)}
            err = storeScript.Run(context.Background(), rc.rdb, keys, version, field, payload, rc.cfg.TTL.Milliseconds()).Err()
            if err != nil {
                c.Logger().Warnf("[cache] store key=%s: %v", key, err)
            }
            return nil
        }
    }
}

// Invalidate returns a middleware that, after a successful write, bumps the
// session's version and drops the cached responses of readPaths for it.
// The session is read before the handler runs because handlers may end it.
func (rc *ResponseCache) Invalidate(readPaths ...string) echo.MiddlewareFunc {
    if !rc.enabled() {
        return passThrough
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            session := sessionOrAnon(c)
            err := next(c)
            if err != nil || c.Response().Status >= http.StatusBadRequest {
                return err
            }
            keys := make([]string, len(readPaths))
            for i, p := range readPaths {
                keys[i] = rc.key(session, p)
            }
            ctx := context.Background()
            vkey := rc.versionKey(session)
            _, txErr := rc.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
                p.Incr(ctx, vkey)
                p.Expire(ctx, vkey, versionTTL)
                if len(keys) > 0 {
                    p.Del(ctx, keys...)
                }
                return nil
            })
            if txErr != nil {
                c.Logger().Warnf("[cache] invalidate session=%s: %v", session, txErr)
            }
            return nil
        }
    }
}
