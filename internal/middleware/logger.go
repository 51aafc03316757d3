package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type LoggerConfig struct {
	EnableColors    bool
	LogRequestBody  bool
	MaxBodySize     int64
	SkipPaths       []string
	SkipSuffixes    []string
	SensitiveFields []string
	Output          *logger.Logger
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		EnableColors:   true,
		LogRequestBody: true,
		MaxBodySize:    2048,
		SkipPaths:      []string{"/health"},
		// upgraded connections stay open for minutes; the relay logs them
		SkipSuffixes:    []string{"/ws"},
		SensitiveFields: []string{"password", "token", "secret", "key", "auth", "credential"},
		Output:          logger.Default(),
	}
}

func Logger() gin.HandlerFunc {
	return LoggerWithConfig(DefaultLoggerConfig())
}

func (cfg LoggerConfig) skip(path string) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, s := range cfg.SkipSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func LoggerWithConfig(cfg LoggerConfig) gin.HandlerFunc {
	if cfg.Output == nil {
		cfg.Output = logger.Default()
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if cfg.skip(path) {
			c.Next()
			return
		}
		start := time.Now()

		var requestBody string
		if cfg.LogRequestBody && c.Request.Body != nil && c.Request.ContentLength > 0 {
			if c.Request.ContentLength > cfg.MaxBodySize {
				requestBody = "[body too large to log]"
			} else if raw, err := io.ReadAll(io.LimitReader(c.Request.Body, cfg.MaxBodySize)); err == nil {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
				requestBody = cfg.sanitizeBody(raw, c.GetHeader("Content-Type"))
			}
		}

		writer := &capturingWriter{ResponseWriter: c.Writer, maxSize: cfg.MaxBodySize}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		line := fmt.Sprintf("%s %s%s %s %v %s",
			c.Request.Method, path, cfg.redactQuery(c.Request.URL.RawQuery),
			cfg.colorStatus(status), time.Since(start).Round(time.Microsecond), formatSize(writer.size))
		if userID := c.GetString("userID"); userID != "" {
			line += " user=" + userID
		}
		if requestBody != "" {
			line += " body=" + requestBody
		}
		if status >= 400 && writer.body.Len() > 0 {
			line += " response=" + truncate(writer.body.String(), 300)
		}

		switch {
		case status >= 500:
			cfg.Output.Error("%s", line)
		case status >= 400:
			cfg.Output.Warn("%s", line)
		default:
			cfg.Output.Info("%s", line)
		}
	}
}

// capturingWriter keeps the first maxSize bytes of the response for error logs
type capturingWriter struct {
	gin.ResponseWriter
	body    bytes.Buffer
	size    int64
	maxSize int64
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	if w.size+int64(n) <= w.maxSize {
		w.body.Write(b[:n])
	}
	w.size += int64(n)
	return n, err
}

func (cfg LoggerConfig) colorStatus(status int) string {
	if !cfg.EnableColors {
		return fmt.Sprintf("%d", status)
	}
	color := colorGreen
	switch {
	case status >= 500:
		color = colorRed
	case status >= 400:
		color = colorYellow
	case status >= 300:
		color = colorCyan
	}
	return fmt.Sprintf("%s%d%s", color, status, colorReset)
}

// redactQuery hides credentials passed as query parameters
func (cfg LoggerConfig) redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "?" + truncate(raw, 100)
	}
	for key := range values {
		if cfg.sensitive(key) {
			values.Set(key, "********")
		}
	}
	return "?" + truncate(values.Encode(), 100)
}

func (cfg LoggerConfig) sensitive(field string) bool {
	field = strings.ToLower(field)
	for _, s := range cfg.SensitiveFields {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}

func (cfg LoggerConfig) sanitizeBody(raw []byte, contentType string) string {
	if !strings.Contains(contentType, "application/json") {
		return truncate(string(raw), 200)
	}
	var data interface{}
	if json.Unmarshal(raw, &data) != nil {
		return truncate(string(raw), 200)
	}
	out, err := json.Marshal(cfg.redact(data))
	if err != nil {
		return ""
	}
	return truncate(string(out), 200)
}

func (cfg LoggerConfig) redact(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if cfg.sensitive(key) {
				out[key] = "********"
			} else {
				out[key] = cfg.redact(value)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = cfg.redact(item)
		}
		return out
	default:
		return v
	}
}

func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
