package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"github.com/gin-gonic/gin"
)

func Signup(c *gin.Context) {
	var input models.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := models.Signup(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func Signin(c *gin.Context) {
	var input models.SigninInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	payload, err := models.Signin(c.Request.Context(), &input)
	if err != nil {
		respondError(c, http.StatusUnauthorized, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func Signout(c *gin.Context) {
	if err := models.Signout(c.Request.Context()); err != nil {
		respondError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// MyOrganizations lists every organization the caller belongs to, for the
// workspace switcher after signin. No X-Organization-Id required.
func MyOrganizations(c *gin.Context) {
	userId, _ := userIdFrom(c)
	organizations, err := models.ListUserOrganizations(c.Request.Context(), userId)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, organizations)
}
