package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/apperr"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// StructValidator checks `validate` struct tags and reports failures as validation errors.
type StructValidator struct {
	v *validator.Validate
}

func NewStructValidator() *StructValidator {
	return &StructValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *StructValidator) Validate(ctx context.Context, message any) error {
	err := s.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", f.Namespace(), f.Tag(), f.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", f.Namespace(), f.Tag()))
	}
	return apperr.Validation("", "%s", strings.Join(parts, "; "))
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
