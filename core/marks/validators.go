package marks

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

var (
	transitionTag  = "transition"
	transitionText = "invalid transition"

	statusTag  = "markstatus"
	statusText = "invalid status"
)

func init() {
	_ = core.Validate.RegisterValidation(transitionTag, transitionValidation)
	core.RegisterCustomTranslation(transitionTag, transitionText)

	_ = core.Validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(statusTag, statusText)
}

// transitionValidation checks that the provided transition is a known edge.
func transitionValidation(fl validator.FieldLevel) bool {
	return Transition(fl.Field().String()).Valid()
}

// statusValidation checks that the provided status is one of AllStatuses.
func statusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).Valid()
}
