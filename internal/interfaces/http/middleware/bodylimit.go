package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meschain/sync/internal/interfaces/http/dto"
)

// BodyLimit caps request body size. Marketplace webhook payloads are
// small, anything near the limit is noise or abuse.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodePayloadTooLarge, "Request body exceeds maximum allowed size"))
			return
		}

		// Chunked requests carry no length up front, cap them while reading
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
