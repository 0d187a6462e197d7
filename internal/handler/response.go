package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/pkg/errors"
)

// Respond writes v as the raw JSON body. Façade results are returned
// unwrapped so callers see exactly what the operation produced.
func Respond(c *gin.Context, status int, v interface{}) {
	c.JSON(status, v)
}

// Found writes v with 200, or null with 404 when v is nil.
func Found[T any](c *gin.Context, v *T) {
	if v == nil {
		c.JSON(http.StatusNotFound, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Deleted writes the delete flag with 200, or false with 404.
func Deleted(c *gin.Context, ok bool) {
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	c.JSON(status, ok)
}

// Fail hands err to the error middleware and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// BindJSON decodes the body into v, failing the request with 400 when the
// body is not valid JSON.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		Fail(c, errors.BadRequest("invalid request body", err))
		return false
	}
	return true
}

// Params collects the query string. Repeated keys become a list so that
// ?type_ids=1&type_ids=2 and ?type_ids=1,2 mean the same thing.
func Params(c *gin.Context) query.Params {
	values := c.Request.URL.Query()
	params := make(query.Params, len(values))
	for key, vs := range values {
		if len(vs) == 1 {
			params[key] = vs[0]
			continue
		}
		params[key] = append([]string(nil), vs...)
	}
	return params
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
