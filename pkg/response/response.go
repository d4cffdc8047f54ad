// Package response writes the {success, data, error} envelope shared by every endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// InternalMessage replaces the text of a 500 sent to a client.
const InternalMessage = "internal server error"

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func write(c *gin.Context, status int, body Body, abort bool) {
	if abort {
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.JSON(status, body)
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Body{Success: true, Data: data}, false)
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Body{Success: true, Data: data}, false)
}

// Fail sends an error envelope with the given status.
func Fail(c *gin.Context, status int, msg string) {
	write(c, status, Body{Error: msg}, false)
}

// AbortFail sends an error envelope and stops the handler chain.
func AbortFail(c *gin.Context, status int, msg string) {
	write(c, status, Body{Error: msg}, true)
}

// Invalid sends 400 for a body that could not be decoded.
func Invalid(c *gin.Context, err error) {
	Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
}

// Error sends err with status. A 500 is attached to the gin context for the request
// logger and reaches the client as InternalMessage only; other statuses carry err's text.
func Error(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = InternalMessage
	}
	Fail(c, status, msg)
}
