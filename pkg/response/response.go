// Package response defines the JSON envelope used by every API handler.
package response

import (
	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request body could not be parsed.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var InvalidKeyResponse = Response{
	Status:  StatusError,
	Error:   "Unauthorized",
	Message: "Invalid admin key.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

func ErrorResponse(errTitle, msg string) Response {
	return Response{
		Status:  StatusError,
		Error:   errTitle,
		Message: msg,
	}
}

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	default:
		return "invalid value"
	}
}

// ValidationErrorResponse turns validator errors into a structured
// response listing the offending fields.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid values.",
	}

	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range errs {
			resp.Details = append(resp.Details, ValidationDetail{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return resp
}
