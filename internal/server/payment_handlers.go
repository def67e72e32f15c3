package server

import (
	"cnom/internal/access"
	"cnom/internal/models"
	"cnom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPayments lists payments for the treasury dashboard.
// @Summary List payments
// @Tags admin
// @Produce json
// @Param status query string false "pending, completed, failed or refunded"
// @Param type query string false "inscription or a cotisation type"
// @Param profile_id query string false "owning profile"
// @Param limit query int false "page size" default(20)
// @Param offset query int false "page offset" default(0)
// @Success 200 {array} models.Payment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/payments [get]
func (s *Server) ListPayments(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	payments, err := s.queries.ListPayments(c.UserContext(), models.PaymentFilter{
		Status:    models.PaymentStatus(c.Query("status")),
		Type:      models.PaymentType(c.Query("type")),
		ProfileID: c.Query("profile_id"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(payments)
}

// ListApplications lists registration applications for reviewers.
// @Summary List applications
// @Tags admin
// @Produce json
// @Param status query string false "application status"
// @Param limit query int false "page size" default(20)
// @Param offset query int false "page offset" default(0)
// @Success 200 {array} models.Application
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/applications [get]
func (s *Server) ListApplications(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	apps, err := s.queries.ListApplications(c.UserContext(),
		models.ApplicationStatus(c.Query("status")), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(apps)
}

// ListPaymentCallbacks lists the most recent provider callbacks, newest first.
// @Summary Recent payment callbacks
// @Tags admin
// @Produce json
// @Param limit query int false "entries" default(50)
// @Success 200 {array} cache.CallbackEntry
// @Security BearerAuth
// @Router /admin/payment-callbacks [get]
func (s *Server) ListPaymentCallbacks(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	entries, err := s.queries.RecentCallbacks(c.UserContext(), page.Limit)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(entries)
}

// GetPayment returns one payment. Practitioners only see their own.
// @Summary Get payment by transaction id
// @Tags payments
// @Produce json
// @Param transactionId path string true "provider transaction id"
// @Success 200 {object} models.Payment
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /payments/{transactionId} [get]
func (s *Server) GetPayment(c *fiber.Ctx) error {
	payment, err := s.queries.GetPayment(c.UserContext(), c.Params("transactionId"), viewerFor(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(payment)
}

// GetMyNotifications lists the caller's in-app notifications. Demo sessions have none.
// @Summary List my notifications
// @Tags payments
// @Produce json
// @Param limit query int false "entries" default(20)
// @Success 200 {array} models.Notification
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetMyNotifications(c *fiber.Ctx) error {
	viewer := viewerFor(c)
	if viewer.ProfileID == "" {
		return c.JSON([]models.Notification{})
	}
	page := parsePagination(c, 20)
	items, err := s.queries.ListNotifications(c.UserContext(), viewer.ProfileID, page.Limit)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return c.JSON(items)
}

// GetMyApplication returns the caller's registration application.
// @Summary Get my application
// @Tags payments
// @Produce json
// @Success 200 {object} models.Application
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications/me [get]
func (s *Server) GetMyApplication(c *fiber.Ctx) error {
	app, err := s.queries.MyApplication(c.UserContext(), viewerFor(c))
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.JSON(app)
}

func viewerFor(c *fiber.Ctx) service.Viewer {
	viewer := service.Viewer{Role: grantedRole(c)}
	if sess, ok := currentSession(c).(access.Authenticated); ok {
		viewer.ProfileID = sess.PrincipalID
	}
	return viewer
}
