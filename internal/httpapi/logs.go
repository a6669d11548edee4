package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyreel/internal/logs"
	"storyreel/internal/services"
)

const (
	defaultLogLines = 200
	maxLogWait      = 30 * time.Second
)

// handleLogs serves the daemon log. Query: offset (byte position, default -1
// for the last lines), limit, follow, wait (seconds) and grep.
func (s *Server) handleLogs(c *gin.Context) {
	if s.logPath == "" {
		s.fail(c, services.Wrap(services.ErrConfiguration, "api", "logs", "log file not configured", nil))
		return
	}
	opts := logs.TailOptions{
		Offset:   -1,
		Limit:    defaultLogLines,
		Follow:   c.Query("follow") == "true" || c.Query("follow") == "1",
		Contains: c.Query("grep"),
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.badRequest(c, "offset must be an integer")
			return
		}
		opts.Offset = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.badRequest(c, "limit must be a non-negative integer")
			return
		}
		opts.Limit = v
	}
	if opts.Follow {
		opts.Wait = maxLogWait
		if raw := c.Query("wait"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				s.badRequest(c, "wait must be a non-negative integer")
				return
			}
			opts.Wait = min(time.Duration(v)*time.Second, maxLogWait)
		}
	}

	result, err := logs.Tail(c.Request.Context(), s.logPath, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	if result.Lines == nil {
		result.Lines = []string{}
	}
	c.JSON(http.StatusOK, result)
}
