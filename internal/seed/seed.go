// Package seed populates a development database with practitioners, staff
// role assignments, registration applications and pending payments.
package seed

import (
	"fmt"
	"log"
	"strings"

	"cnom/internal/models"

	"gorm.io/gorm"
)

// Options controls how much data the seeder creates.
type Options struct {
	Practitioners int
	// Staff assigns one profile per stored role value (super_admin, treasurer, approver).
	Staff bool
	// Seed makes runs reproducible when non-zero.
	Seed int64
}

// Result lists what a run created. Pending transaction ids can be replayed
// against the callback endpoint.
type Result struct {
	Profiles            []models.Profile
	Applications        []models.Application
	PendingTransactions []string
}

// StoredStaffRoles are the raw administrative values written to user_roles.
var StoredStaffRoles = []string{"super_admin", "treasurer", "approver"}

// Seeder writes generated rows through a Factory.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder returns a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts.Seed)}
}

// ClearAll removes every seeded row. Payments and applications go first.
func (s *Seeder) ClearAll() error {
	log.Println("clearing existing data")
	for _, model := range []any{
		&models.Notification{}, &models.Payment{}, &models.Application{},
		&models.UserRole{}, &models.Profile{},
	} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run creates staff and practitioners in a single transaction.
func (s *Seeder) Run(opts Options) (*Result, error) {
	res := &Result{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		f := s.factory.WithDB(tx)

		if opts.Staff {
			for _, raw := range StoredStaffRoles {
				p, err := f.CreateProfile(func(p *models.Profile) {
					p.Email = strings.ReplaceAll(raw, "_", ".") + "@cnom.test"
				})
				if err != nil {
					return err
				}
				if err := f.AssignRole(p.ID, raw); err != nil {
					return err
				}
				res.Profiles = append(res.Profiles, *p)
			}
		}

		for i := 0; i < opts.Practitioners; i++ {
			p, err := f.CreateProfile()
			if err != nil {
				return err
			}
			res.Profiles = append(res.Profiles, *p)

			app, err := f.CreateApplication(p.ID, f.RandomApplicationStatus())
			if err != nil {
				return err
			}
			res.Applications = append(res.Applications, *app)

			typ := models.PaymentTypeInscription
			if app.Status != models.ApplicationStatusSubmitted && app.Status != models.ApplicationStatusDraft {
				typ = f.RandomDuesType()
			}
			pay, err := f.CreatePendingPayment(p.ID, typ)
			if err != nil {
				return err
			}
			res.PendingTransactions = append(res.PendingTransactions, pay.TransactionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("seeded %d profiles, %d applications, %d pending payments",
		len(res.Profiles), len(res.Applications), len(res.PendingTransactions))
	return res, nil
}

// amountFor returns the fee in XAF for a payment type.
func amountFor(t models.PaymentType) int64 {
	switch t {
	case models.PaymentTypeInscription:
		return 50000
	case models.PaymentTypeCotisationAnnuelle:
		return 60000
	case models.PaymentTypeCotisationSemestrielle:
		return 30000
	default:
		return 5000
	}
}
