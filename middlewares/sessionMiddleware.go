package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware rejects revoked tokens: a JWT that passed signature
// validation but has no redis session (signed out) is not accepted.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); !ok {
			ctx := utils.SetCorrelationIdInContext(c.Request.Context(), uuid.NewString())
			c.Request = c.Request.WithContext(ctx)
		}

		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok || token == "" {
			c.Next()
			return
		}

		email, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OrganizationMiddleware establishes tenant scope from the X-Organization-Id
// header. Membership and role come from the caller's profile; everything
// downstream (tenant guard included) reads the context this sets.
func OrganizationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId := c.Request.Header.Get("X-Organization-Id")
		if organizationId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Organization-Id header is required"})
			c.Abort()
			return
		}

		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userId == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		profile, err := models.GetActiveProfile(c.Request.Context(), organizationId, userId)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		ctx = utils.SetProfileRoleInContext(ctx, string(profile.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
