package middleware

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/hms/pkg/validator"
)

var bindingOnce sync.Once

// UseJSONFieldNames makes gin's binding validator report fields by their
// json name and understand the custom model rules.
func UseJSONFieldNames() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
			validator.UseJSONNames(v)
			validator.RegisterRules(v)
		}
	})
}
