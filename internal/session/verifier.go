package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"opscore/internal/auth"
	"opscore/internal/models"
)

// DBVerifier checks credentials against the users table and issues signed
// tokens. Accounts with two-factor enabled get a short-lived single-use
// challenge code instead of a token on the primary step.
type DBVerifier struct {
	db      *gorm.DB
	codec   *auth.Codec
	lg      *zap.SugaredLogger
	codeTTL time.Duration
}

func NewDBVerifier(db *gorm.DB, codec *auth.Codec, codeTTL time.Duration, lg *zap.SugaredLogger) *DBVerifier {
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	return &DBVerifier{db: db, codec: codec, lg: lg, codeTTL: codeTTL}
}

func (v *DBVerifier) VerifyPrimary(ctx context.Context, email, password string) (VerifyResult, error) {
	u, err := v.lookupUser(ctx, email)
	if err != nil {
		return VerifyResult{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return VerifyResult{}, ErrInvalidCredentials
	}
	if u.TwoFactorEnabled {
		if err := v.issueChallenge(ctx, u.Email); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{StepUpRequired: true}, nil
	}
	tok, err := v.signFor(u)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Token: tok}, nil
}

func (v *DBVerifier) VerifyStepUp(ctx context.Context, email, code string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var ch models.StepUpChallenge
	err := v.db.WithContext(ctx).
		Where("email = ? AND code = ? AND consumed_at IS NULL", email, code).
		Order("created_at desc").First(&ch).Error
	if err != nil {
		return "", ErrInvalidStepUpCode
	}
	if time.Now().UTC().After(ch.ExpiresAt) {
		return "", ErrInvalidStepUpCode
	}
	now := time.Now().UTC()
	ch.ConsumedAt = &now
	if err := v.db.WithContext(ctx).Save(&ch).Error; err != nil {
		return "", err
	}
	u, err := v.lookupUser(ctx, email)
	if err != nil {
		return "", ErrInvalidStepUpCode
	}
	return v.signFor(u)
}

func (v *DBVerifier) lookupUser(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var u models.User
	err := v.db.WithContext(ctx).Preload("Roles").
		First(&u, "email = ? AND is_active = ?", email, true).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (v *DBVerifier) signFor(u *models.User) (string, error) {
	var roleNames []string
	for _, r := range u.Roles {
		roleNames = append(roleNames, r.Name)
	}
	return v.codec.Sign(u.ID, roleNames, u.DisplayName, u.Email)
}

func (v *DBVerifier) issueChallenge(ctx context.Context, email string) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	ch := models.StepUpChallenge{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(v.codeTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := v.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return err
	}
	// Delivery (mail/SMS) lives outside this layer; the code is only logged
	// at debug level for local development.
	v.lg.Debugw("step-up challenge issued", "email", email)
	return nil
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
