package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/tourbook-backend/internal/resource"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CheckoutClient creates hosted payment pages.
type CheckoutClient interface {
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Buyer is the authenticated customer starting a checkout.
type Buyer struct {
	ID    uuid.UUID
	Email string
}

// CheckoutSession opens a payment page for one seat on a tour.
func (s *Service) CheckoutSession(ctx context.Context, buyer Buyer, tourID uuid.UUID) (*stripe.CheckoutSession, error) {
	if s.checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}
	tour, err := loadTour(ctx, s.db, tourID)
	if err != nil {
		return nil, err
	}

	params := s.checkoutParams(buyer, tour)
	sess, err := s.checkout.NewCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return sess, nil
}

func (s *Service) checkoutParams(buyer Buyer, tour *models.Tour) *stripe.CheckoutSessionParams {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name:        stripe.String(fmt.Sprintf("%s Tour", tour.Name)),
		Description: stripe.String(tour.Summary),
	}
	if tour.ImageCover != "" {
		product.Images = []*string{stripe.String(s.publicURL + "/img/tours/" + tour.ImageCover)}
	}

	return &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: []*string{stripe.String("card")},
		SuccessURL:         stripe.String(s.publicURL + "/my-tours?alert=booking"),
		CancelURL:          stripe.String(s.publicURL + "/tour/" + tour.Slug),
		CustomerEmail:      stripe.String(buyer.Email),
		ClientReferenceID:  stripe.String(tour.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(s.currency),
					UnitAmount:  stripe.Int64(tour.Price.Mul(hundred).Round(0).IntPart()),
					ProductData: product,
				},
			},
		},
	}
}

// FulfillCheckout books the tour paid for in a completed checkout session.
// A booking that already exists for the same customer and tour counts as
// fulfilled.
func (s *Service) FulfillCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	tourID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session has no tour reference")
	}
	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no customer email")
	}

	if _, err := loadTour(ctx, s.db, tourID); err != nil {
		return err
	}
	var user models.User
	err = s.db.WithContext(ctx).Where("email = ? AND active = ?", email, true).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resource.NotFound("user")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup customer")
	}

	booking := &models.Booking{
		TourID: tourID,
		UserID: user.ID,
		Price:  decimal.NewFromInt(sess.AmountTotal).Div(hundred),
		Paid:   true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.crud.Using(tx).Insert(ctx, booking); err != nil {
			return err
		}
		return s.emitCreated(ctx, tx, booking, SourceCheckout, sess.ID)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey) {
			return nil
		}
		return err
	}
	s.recordCreated(SourceCheckout)
	return nil
}
