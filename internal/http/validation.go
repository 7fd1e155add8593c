package http

import (
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

var registerValidationsOnce sync.Once

// registerValidations agrega reglas propias al validador de gin.
func registerValidations() {
	registerValidationsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("strong_password", strongPassword)
		}
	})
}

func strongPassword(fl validator.FieldLevel) bool {
	return isStrongPassword(fl.Field().String())
}

// isStrongPassword exige minusculas, mayusculas, digitos y simbolos.
func isStrongPassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
