package middleware

import "github.com/gin-gonic/gin"

// limiterKey prefers the published subject, then a verified token subject,
// then the client IP.
func limiterKey(c *gin.Context) string {
	if s := c.GetString(SubjectKey); s != "" {
		return "sub:" + s
	}
	if v, ok := c.Get("claims"); ok {
		if cm, ok2 := v.(map[string]interface{}); ok2 {
			if sub, ok3 := cm["sub"].(string); ok3 && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
