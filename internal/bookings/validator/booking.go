package validator

import (
	"cowork/pkg/logger"
	"cowork/pkg/model"
	pkgvalidator "cowork/pkg/validator"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v, err := pkgvalidator.New()
	if err != nil {
		log.Fatal("Failed to initialize booking validator", "error", err)
	}

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateRequest checks field formats only. Party size and the time range
// itself are judged by the engine, which reports them with their own codes.
func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	return pkgvalidator.Struct(v.validate, req)
}

func (v *BookingValidator) ValidateCancel(req *model.CancelRequest) error {
	return pkgvalidator.Struct(v.validate, req)
}

func (v *BookingValidator) ValidatePayment(req *model.PaymentRequest) error {
	return pkgvalidator.Struct(v.validate, req)
}

func (v *BookingValidator) ValidatePaymentCaptured(event *model.PaymentCaptured) error {
	return pkgvalidator.Struct(v.validate, event)
}
