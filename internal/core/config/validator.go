package config

import (
	"codegraph/internal/core/errors"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var configValidate = validator.New()

// Validate checks field constraints and the cross-field rules struct tags
// cannot express.
func Validate(cfg *Config) error {
	if err := configValidate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			err = errors.New(errors.CodeValidationError, strings.Join(msgs, "; "))
		} else {
			err = errors.Wrap(err, errors.CodeValidationError, "validate config")
		}
		return errors.AddContext(err, errors.CtxStage, errors.StageValidate)
	}
	if cfg.Enrichment.FanOut == "limit" && cfg.Enrichment.Limit < 1 {
		err := errors.New(errors.CodeValidationError, "enrichment.limit must be >= 1 when enrichment.fan_out=limit")
		return errors.AddContext(err, errors.CtxStage, errors.StageValidate)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value())
}
