package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Response is a common response struct for all the API calls.
// A Response may contain the status code and a body to be rendered.
type Response struct {
	body        interface{}
	Code        int
	contentType string
}

// Render implements the render.Renderer interface so a Response can be
// rendered through go-chi/render.
func (resp *Response) Render(w http.ResponseWriter, r *http.Request) error {
	if resp.contentType != "" {
		w.Header().Set("Content-Type", resp.contentType)
	}
	render.Status(r, resp.Code)
	return nil
}

// MarshalJSON exposes the wrapped body to the renderer.
func (resp *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(resp.body)
}

// JSON200Response is a constructor for a JSON 200 response.
func JSON200Response(body interface{}) *Response {
	return &Response{
		body:        body,
		Code:        http.StatusOK,
		contentType: "application/json",
	}
}

// JSON201Response is a constructor for a JSON 201 response.
func JSON201Response(body interface{}) *Response {
	return &Response{
		body:        body,
		Code:        http.StatusCreated,
		contentType: "application/json",
	}
}

// ErrorResponse is a constructor for an error response with a message body.
func ErrorResponse(code int, message string) *Response {
	return &Response{
		body:        message,
		Code:        code,
		contentType: "application/json",
	}
}

// writeResponse renders a handler's Response onto the wire. A nil Response
// means the handler already wrote directly.
func writeResponse(w http.ResponseWriter, r *http.Request, resp *Response) {
	if resp == nil {
		return
	}
	if resp.body == nil {
		w.WriteHeader(resp.Code)
		return
	}
	if err := render.Render(w, r, resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
