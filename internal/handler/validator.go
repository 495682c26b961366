package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/meditrack/adherence-api/internal/model"
)

// RegisterValidators installs custom request validators on gin's binding
// engine. Must run before the first request is bound.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("clocktime", func(fl validator.FieldLevel) bool {
			return model.ValidClock(fl.Field().String())
		})
	}
}
