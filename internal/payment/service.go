package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtandao-wifi/hotspot-portal/internal/metrics"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	log "github.com/sirupsen/logrus"
)

// ErrGatewayInitiationFailed indicates the gateway rejected or never
// received the push request. The originating payment request has already
// been marked failed by the time this error is returned.
var ErrGatewayInitiationFailed = errors.New("payment: gateway initiation failed")

// Service drives the payment flow: it creates the pending request, submits
// the push-payment prompt, and keeps the request state consistent with the
// gateway acknowledgement. Completion arrives later through the callback.
type Service struct {
	tracker *Tracker
	gateway mpesa.Gateway
}

// NewService constructs a payment Service.
func NewService(tracker *Tracker, gateway mpesa.Gateway) *Service {
	return &Service{tracker: tracker, gateway: gateway}
}

// Initiate starts a payment for the plan and returns the pending request.
// The caller observes completion later by polling the reference or through
// the callback. Any known initiation failure marks the request failed
// synchronously; it is never left pending.
func (s *Service) Initiate(ctx context.Context, planID uint64, phoneNumber string) (*models.PaymentRequest, error) {
	phone, errPhone := mpesa.NormalizePhone(phoneNumber)
	if errPhone != nil {
		return nil, errPhone
	}

	request, errCreate := s.tracker.CreatePending(ctx, planID, phone)
	if errCreate != nil {
		return nil, errCreate
	}

	ack, errPush := s.gateway.InitiateSTKPush(ctx, phone, request.Amount, request.Reference)
	if errPush != nil {
		note := fmt.Sprintf("initiation error: %v", errPush)
		if errMark := s.tracker.MarkInitiationFailed(ctx, request, note); errMark != nil {
			log.WithError(errMark).WithField("reference", request.Reference).
				Error("mark initiation failed after gateway error")
		}
		metrics.PaymentsInitiated.WithLabelValues("error").Inc()
		return request, fmt.Errorf("%w: %v", ErrGatewayInitiationFailed, errPush)
	}

	if !ack.Accepted {
		note := ack.ResponseDescription
		if note == "" {
			note = "gateway rejected initiation"
		}
		if errMark := s.tracker.MarkInitiationFailed(ctx, request, note); errMark != nil {
			log.WithError(errMark).WithField("reference", request.Reference).
				Error("mark initiation failed after gateway rejection")
		}
		metrics.PaymentsInitiated.WithLabelValues("rejected").Inc()
		return request, fmt.Errorf("%w: %s", ErrGatewayInitiationFailed, note)
	}

	if errAccept := s.tracker.RecordGatewayAccepted(ctx, request, ack.MerchantRequestID, ack.CheckoutRequestID); errAccept != nil {
		return nil, errAccept
	}

	metrics.PaymentsInitiated.WithLabelValues("accepted").Inc()
	log.WithFields(log.Fields{
		"reference": request.Reference,
		"plan_id":   planID,
	}).Info("payment initiated")
	return request, nil
}
