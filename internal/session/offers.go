package session

import (
	"context"
	"errors"
	"fmt"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/platform"

	"go.uber.org/zap"
)

// SendOffer offers items to the owner of receiveAddress with message attached.
//
// A failed submission is retried after the fixed backoff until retries is
// exhausted, rebuilding the offer each time, so at most retries+1 attempts
// are made. An offer that comes back pending is confirmed out of band; a
// confirmation failure ends the call without resending. Invalid parameters,
// offer creation failures and item attach failures are never retried.
func (s *Session) SendOffer(ctx context.Context, receiveAddress, message string, items []*model.Item, retries int) error {
	if receiveAddress == "" || message == "" || len(items) == 0 {
		return model.ErrInvalidOfferParams
	}
	for _, item := range items {
		if item == nil {
			return fmt.Errorf("%w: nil item", model.ErrInvalidOfferParams)
		}
	}
	if retries < 0 {
		retries = 0
	}

	maxAttempts := retries + 1
	for attempt := 1; ; attempt++ {
		s.log.Info("creating trade offer",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("items", len(items)))

		offer, err := s.buildOffer(receiveAddress, message, items)
		if err != nil {
			return err
		}

		state, err := offer.Send(ctx)
		if err != nil {
			s.log.Warn("error sending offer", zap.Int("attempt", attempt), zap.Error(err))
			if attempt >= maxAttempts {
				s.log.Error("maximum retries reached for send offer", zap.Int("attempts", attempt))
				return fmt.Errorf("%w: %w", model.ErrSendOffer, err)
			}
			if err := s.sleep(ctx, s.backoff); err != nil {
				return fmt.Errorf("%w: %w", model.ErrSendOffer, err)
			}
			continue
		}

		if state == platform.OfferPending {
			s.log.Info("offer sent, waiting for confirmation", zap.String("offer_id", offer.ID()))
			if err := s.confirmOffer(ctx, offer); err != nil {
				return err
			}
			s.log.Info("offer confirmed successfully", zap.String("offer_id", offer.ID()))
			return nil
		}

		s.log.Info("offer sent", zap.String("offer_id", offer.ID()), zap.String("state", string(state)))
		return nil
	}
}

func (s *Session) buildOffer(receiveAddress, message string, items []*model.Item) (platform.OutgoingOffer, error) {
	offer, err := s.offers.CreateOffer(receiveAddress)
	if err != nil {
		s.log.Error("error creating offer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", model.ErrSendOffer, err)
	}
	offer.SetMessage(message)

	for _, item := range items {
		if err := offer.AddMyItem(item.Raw()); err != nil {
			s.log.Error("error adding item to offer",
				zap.String("asset_id", item.AssetID()),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %w", model.ErrItemAttach, item.AssetID(), err)
		}
	}
	return offer, nil
}

// AcceptOffer accepts an incoming offer, retrying failures after the fixed
// backoff until retries is exhausted.
func (s *Session) AcceptOffer(ctx context.Context, offer platform.IncomingOffer, retries int) error {
	if offer == nil {
		return model.ErrInvalidOffer
	}
	if retries < 0 {
		retries = 0
	}

	maxAttempts := retries + 1
	for attempt := 1; ; attempt++ {
		s.log.Info("accepting trade offer",
			zap.String("offer_id", offer.ID()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))

		err := offer.Accept(ctx)
		if err == nil {
			s.log.Info("offer accepted successfully", zap.String("offer_id", offer.ID()))
			return nil
		}

		s.log.Warn("error accepting offer", zap.Int("attempt", attempt), zap.Error(err))
		if attempt >= maxAttempts {
			s.log.Error("maximum retries reached for accept offer", zap.Int("attempts", attempt))
			return fmt.Errorf("%w: %w", model.ErrAcceptOffer, err)
		}
		if err := s.sleep(ctx, s.backoff); err != nil {
			return fmt.Errorf("%w: %w", model.ErrAcceptOffer, err)
		}
	}
}

// DeclineOffer declines an incoming offer once. Callers treat failure as
// best effort.
func (s *Session) DeclineOffer(ctx context.Context, offer platform.IncomingOffer) error {
	if offer == nil {
		return model.ErrInvalidOffer
	}
	if err := offer.Decline(ctx); err != nil {
		s.log.Warn("error declining offer", zap.String("offer_id", offer.ID()), zap.Error(err))
		return err
	}
	s.log.Info("offer declined successfully", zap.String("offer_id", offer.ID()))
	return nil
}

var errNoOfferID = errors.New("offer has no id")

// confirmOffer approves a sent offer with the account's identity secret.
func (s *Session) confirmOffer(ctx context.Context, offer platform.OutgoingOffer) error {
	if offer == nil || offer.ID() == "" {
		s.log.Error("invalid offer for confirmation")
		return fmt.Errorf("%w: %w", model.ErrConfirmation, errNoOfferID)
	}

	s.log.Info("accepting mobile confirmation", zap.String("offer_id", offer.ID()))
	if err := s.community.AcceptConfirmationForObject(ctx, s.creds.IdentitySecret, offer.ID()); err != nil {
		s.log.Error("mobile confirmation error", zap.String("offer_id", offer.ID()), zap.Error(err))
		return fmt.Errorf("%w: %w", model.ErrConfirmation, err)
	}
	s.log.Info("mobile confirmation accepted", zap.String("offer_id", offer.ID()))
	return nil
}
