package util

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// DNI 或护照号：字母、数字与连字符
var dniPattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,20}$`)

func validateDNI(fl validator.FieldLevel) bool {
	return dniPattern.MatchString(fl.Field().String())
}

// RegisterValidators 向 gin 的校验引擎注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("dni", validateDNI)
}
