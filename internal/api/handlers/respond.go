// Package handlers contains the HTTP handlers of the shop API.
package handlers

import (
	"net/http"

	"github.com/go-chi/render"
)

// errorResponse is the error payload shape.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response is the success payload shape.
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: kind, Code: status, Message: message})
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{Success: true, Data: data})
}

func respondPage(w http.ResponseWriter, r *http.Request, data interface{}, page, pageSize, total int) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    data,
		Meta: map[string]interface{}{
			"pagination": map[string]interface{}{
				"page":      page,
				"page_size": pageSize,
				"total":     total,
				"has_next":  page*pageSize < total,
				"has_prev":  page > 1,
			},
		},
	})
}
