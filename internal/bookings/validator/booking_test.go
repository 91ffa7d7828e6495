package validator

import (
	"errors"
	"testing"

	"cowork/pkg/logger"
	"cowork/pkg/model"
	pkgvalidator "cowork/pkg/validator"
)

func TestValidateRequest(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	valid := func() *model.BookingRequest {
		return &model.BookingRequest{
			ResourceID:  "room-3",
			RequesterID: "alice",
			Date:        "2026-03-02",
			Start:       "09:00",
			End:         "17:00",
			PartySize:   4,
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *model.BookingRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *model.BookingRequest) {}},
		{name: "end of day", mutate: func(r *model.BookingRequest) { r.End = "24:00" }},
		{name: "missing resource", mutate: func(r *model.BookingRequest) { r.ResourceID = "" }, wantField: "BookingRequest.resource_id"},
		{name: "bad date", mutate: func(r *model.BookingRequest) { r.Date = "02/03/2026" }, wantField: "BookingRequest.date"},
		{name: "bad clock", mutate: func(r *model.BookingRequest) { r.Start = "9am" }, wantField: "BookingRequest.start"},
		{name: "missing requester", mutate: func(r *model.BookingRequest) { r.RequesterID = "" }, wantField: "BookingRequest.RequesterID"},
		// Party size is left to the engine.
		{name: "zero party", mutate: func(r *model.BookingRequest) { r.PartySize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := v.ValidateRequest(req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateRequest() unexpected error: %v", err)
				}
				return
			}

			var verrs pkgvalidator.ValidationErrors
			if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Field != tt.wantField {
				t.Errorf("ValidateRequest() error = %v, want field %s", err, tt.wantField)
			}
		})
	}
}

func TestValidatePayment(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	if err := v.ValidatePayment(&model.PaymentRequest{AmountCents: 500}); err != nil {
		t.Errorf("ValidatePayment() unexpected error: %v", err)
	}
	if err := v.ValidatePayment(&model.PaymentRequest{AmountCents: 0}); err == nil {
		t.Error("ValidatePayment() accepted a zero amount")
	}
	if err := v.ValidatePaymentCaptured(&model.PaymentCaptured{PaymentID: "p1"}); err == nil {
		t.Error("ValidatePaymentCaptured() accepted a missing booking id")
	}
}
