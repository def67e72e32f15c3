package seed

import (
	"fmt"
	"strings"
	"time"

	"cnom/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain rows with plausible fake content and persists them.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
}

// NewFactory creates a Factory. A zero seed draws from the clock.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{db: db, faker: gofakeit.New(seed)}
}

// WithDB returns a copy of the factory writing through db, typically a transaction.
func (f *Factory) WithDB(db *gorm.DB) *Factory {
	return &Factory{db: db, faker: f.faker}
}

// CreateProfile persists a practitioner profile with a Gabonese phone number.
func (f *Factory) CreateProfile(overrides ...func(*models.Profile)) (*models.Profile, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	p := &models.Profile{
		ID:        f.faker.UUID(),
		FirstName: first,
		LastName:  last,
		Email: fmt.Sprintf("%s.%s.%d@cnom.test",
			strings.ToLower(first), strings.ToLower(last), f.faker.Number(100, 999)),
		Phone: "+2410" + f.faker.DigitN(7),
	}
	for _, o := range overrides {
		o(p)
	}
	if err := f.db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// AssignRole writes the raw stored role for userID.
func (f *Factory) AssignRole(userID, raw string) error {
	if err := f.db.Create(&models.UserRole{UserID: userID, Role: raw}).Error; err != nil {
		return fmt.Errorf("assign role %s: %w", raw, err)
	}
	return nil
}

// CreateApplication persists an application in the given status.
func (f *Factory) CreateApplication(profileID string, status models.ApplicationStatus) (*models.Application, error) {
	a := &models.Application{ProfileID: profileID, Status: status}
	if status != models.ApplicationStatusDraft {
		submitted := f.faker.DateRange(time.Now().AddDate(0, -3, 0), time.Now()).UTC()
		a.SubmittedAt = &submitted
	}
	if err := f.db.Create(a).Error; err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return a, nil
}

// CreatePendingPayment persists a pending Airtel Money payment with a unique transaction id.
func (f *Factory) CreatePendingPayment(profileID string, typ models.PaymentType) (*models.Payment, error) {
	p := &models.Payment{
		TransactionID: "CNOM" + strings.ToUpper(f.faker.LetterN(4)) + f.faker.DigitN(8),
		ProfileID:     profileID,
		PaymentType:   typ,
		PaymentStatus: models.PaymentStatusPending,
		Amount:        amountFor(typ),
		Currency:      models.DefaultCurrency,
		PhoneNumber:   "+2417" + f.faker.DigitN(7),
	}
	if err := f.db.Create(p).Error; err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// RandomApplicationStatus leans towards submitted so callbacks have something to advance.
func (f *Factory) RandomApplicationStatus() models.ApplicationStatus {
	return models.ApplicationStatus(f.faker.RandomString([]string{
		string(models.ApplicationStatusSubmitted),
		string(models.ApplicationStatusSubmitted),
		string(models.ApplicationStatusDraft),
		string(models.ApplicationStatusUnderReview),
		string(models.ApplicationStatusValidated),
	}))
}

// RandomDuesType picks one of the membership dues types.
func (f *Factory) RandomDuesType() models.PaymentType {
	return models.PaymentType(f.faker.RandomString([]string{
		string(models.PaymentTypeCotisationAnnuelle),
		string(models.PaymentTypeCotisationSemestrielle),
		string(models.PaymentTypeCotisationMensuelle),
	}))
}
