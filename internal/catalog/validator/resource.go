package validator

import (
	"cowork/pkg/model"
	pkgvalidator "cowork/pkg/validator"

	"github.com/go-playground/validator/v10"
)

type ResourceValidator struct {
	validate *validator.Validate
}

func NewResourceValidator() (*ResourceValidator, error) {
	v, err := pkgvalidator.New()
	if err != nil {
		return nil, err
	}
	return &ResourceValidator{validate: v}, nil
}

func (v *ResourceValidator) Validate(r *model.Resource) error {
	if err := pkgvalidator.Struct(v.validate, r); err != nil {
		return err
	}
	return v.validateBusinessRules(r)
}

func (v *ResourceValidator) ValidateRates(rates model.RateCard) error {
	if err := pkgvalidator.Struct(v.validate, rates); err != nil {
		return err
	}
	if rates.IsEmpty() {
		return pkgvalidator.ValidationErrors{{Field: "rates", Message: "at least one rate tier must be offered"}}
	}
	return nil
}

func (v *ResourceValidator) ValidateStatus(update *model.StatusUpdate) error {
	return pkgvalidator.Struct(v.validate, update)
}

func (v *ResourceValidator) validateBusinessRules(r *model.Resource) error {
	var errs pkgvalidator.ValidationErrors

	if r.Kind == model.KindSeat && r.Capacity != 1 {
		errs = append(errs, pkgvalidator.ValidationError{Field: "capacity", Message: "a seat holds exactly one person"})
	}
	if r.Kind == model.KindSeat && r.PricingUnit == model.PricePerSeat {
		errs = append(errs, pkgvalidator.ValidationError{Field: "pricing_unit", Message: "per-seat pricing applies to rooms only"})
	}
	if r.Rates.IsEmpty() {
		errs = append(errs, pkgvalidator.ValidationError{Field: "rates", Message: "at least one rate tier must be offered"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
