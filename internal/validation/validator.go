// Package validation wraps a shared go-playground validator instance.
//
// The validator caches struct metadata, so one instance is built lazily and
// reused by every caller.
package validation

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Failure names the rule a value broke, e.g. Tag "max" with Param "20".
type Failure struct {
	Tag   string
	Param string
}

// Check validates a single value against a tag expression such as
// "required" or "min=1,max=20". It returns nil when the value passes.
func Check(value any, tag string) *Failure {
	err := Get().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &Failure{Tag: verrs[0].Tag(), Param: verrs[0].Param()}
	}
	return &Failure{Tag: "invalid"}
}

// StructValidator plugs the shared validator into fiber's binder.
type StructValidator struct{}

func (StructValidator) Validate(out any) error {
	return Get().Struct(out)
}
