package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/pkg/response"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			field := e.Namespace()
			if i := strings.IndexByte(field, '.'); i >= 0 {
				field = field[i+1:]
			}
			errors[field] = e.Tag()
		}
		return errors
	}
	return nil
}

// decodeStrict parses a JSON body and rejects fields the request type does
// not declare.
func decodeStrict(c *fiber.Ctx, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// respondError maps service errors onto the API error envelope. Causes of
// unexpected failures are logged, never returned.
func respondError(c *fiber.Ctx, log logrus.FieldLogger, err error) error {
	var (
		ve *model.ValidationError
		ce *model.ConflictError
		te *model.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		var details interface{}
		if len(ve.Fields) > 0 {
			details = ve.Fields
		}
		return response.ValidationError(c, ve.Error(), details)
	case errors.As(err, &ce):
		return response.Conflict(c, response.CodeConflict, ce.Error(), fiber.Map{
			"projectId":   ce.ProjectID,
			"activeJobId": ce.ActiveJobID,
		})
	case errors.As(err, &te):
		return response.Conflict(c, response.CodeInvalidState,
			"Job is "+string(te.From)+" and cannot move to "+string(te.To), nil)
	case errors.Is(err, model.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, model.ErrForbidden):
		return response.Forbidden(c, "You do not have access to this resource")
	case errors.Is(err, model.ErrDispatch):
		log.WithError(err).Error("Render queue unavailable")
		return response.Unavailable(c, "Render queue unavailable, try again later")
	default:
		log.WithError(err).Error("Request failed")
		return response.ServiceError(c, "Internal server error")
	}
}
