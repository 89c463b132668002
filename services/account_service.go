package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yieldnest/invest_api/models"
	"github.com/yieldnest/invest_api/utils"
	"golang.org/x/crypto/bcrypt"
)

type Registration struct {
	FullName     string
	Email        string
	Password     string
	ReferralCode string
}

// Register creates an active user holding the welcome bonus. An unknown
// referral code is ignored.
func (l *Ledger) Register(ctx context.Context, reg Registration) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	name := strings.TrimSpace(reg.FullName)
	if email == "" || name == "" || reg.Password == "" {
		return nil, ErrInvalidInput
	}

	if _, err := l.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New(),
		FullName:      name,
		Email:         email,
		Password:      string(hashed),
		Role:          models.RoleUser,
		Status:        models.UserStatusActive,
		Balance:       welcomeBonus,
		TotalInvested: decimal.Zero,
		TotalEarnings: welcomeBonus,
	}

	if code := strings.ToUpper(strings.TrimSpace(reg.ReferralCode)); code != "" {
		referrer, err := l.store.GetUserByReferralCode(ctx, code)
		switch {
		case err == nil:
			user.ReferredBy = &referrer.ID
		case errors.Is(err, ErrNotFound):
			log.Printf("⚠️ Invalid referral code used: %s", code)
		default:
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	if err := l.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Login checks the credentials and returns the user they belong to.
func (l *Ledger) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := l.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsBlocked() {
		return nil, ErrUserBlocked
	}
	return user, nil
}

type ReferralInfo struct {
	Code     string          `json:"referral_code"`
	Count    int64           `json:"referral_count"`
	Earnings decimal.Decimal `json:"referral_earnings"`
}

// ReferralInfo returns the user's referral code, generating it on first use.
func (l *Ledger) ReferralInfo(ctx context.Context, userID uuid.UUID) (*ReferralInfo, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("referral info: %w", err)
	}

	code := ""
	if user.ReferralCode != nil {
		code = *user.ReferralCode
	} else {
		generated, err := utils.GenerateUniqueReferralCode(func(c string) (bool, error) {
			return l.store.ReferralCodeExists(ctx, c)
		})
		if err != nil {
			return nil, fmt.Errorf("referral info: %w", err)
		}
		set, err := l.store.SetReferralCode(ctx, userID, generated)
		if err != nil {
			return nil, fmt.Errorf("referral info: failed to store code: %w", err)
		}
		if set {
			code = generated
		} else {
			// Another request set it first.
			fresh, err := l.store.GetUser(ctx, userID)
			if err != nil || fresh.ReferralCode == nil {
				return nil, fmt.Errorf("referral info: code not readable after concurrent update: %v", err)
			}
			code = *fresh.ReferralCode
		}
	}

	count, err := l.store.CountReferredUsers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("referral info: %w", err)
	}
	earned, err := l.store.SumReferralPayouts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("referral info: %w", err)
	}
	return &ReferralInfo{Code: code, Count: count, Earnings: earned}, nil
}

// ResolveIdentity reloads the account behind a token so role changes and
// blocks apply to tokens issued before them. Only the user id is taken from
// the claims.
func (l *Ledger) ResolveIdentity(ctx context.Context, claimed Identity) (Identity, error) {
	user, err := l.store.GetUser(ctx, claimed.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	if user.IsBlocked() {
		return Identity{}, ErrUserBlocked
	}
	return Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (l *Ledger) SetUserRole(ctx context.Context, caller Identity, userID uuid.UUID, role string) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return ErrInvalidInput
	}
	if err := l.store.UpdateUserRole(ctx, userID, role); err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	log.Printf("✅ User %s role set to %s by %s", userID, role, caller.Email)
	return nil
}

func (l *Ledger) SetUserStatus(ctx context.Context, caller Identity, userID uuid.UUID, status string) error {
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if status != models.UserStatusActive && status != models.UserStatusBlocked {
		return ErrInvalidInput
	}
	if caller.UserID == userID && status == models.UserStatusBlocked {
		return ErrInvalidInput
	}
	if err := l.store.UpdateUserStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	log.Printf("✅ User %s status set to %s by %s", userID, status, caller.Email)
	return nil
}

func (l *Ledger) ListUsers(ctx context.Context, caller Identity, f ListFilter) ([]models.User, int64, error) {
	if err := l.requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	return l.store.ListUsers(ctx, f)
}

// SeedAdmin creates the configured admin account when no user holds the email.
func (l *Ledger) SeedAdmin(ctx context.Context, fullName, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := l.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed admin: failed to hash password: %w", err)
	}
	if fullName == "" {
		fullName = "Administrator"
	}
	admin := &models.User{
		ID:            uuid.New(),
		FullName:      fullName,
		Email:         email,
		Password:      string(hashed),
		Role:          models.RoleAdmin,
		Status:        models.UserStatusActive,
		Balance:       decimal.Zero,
		TotalInvested: decimal.Zero,
		TotalEarnings: decimal.Zero,
	}
	if err := l.store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("✅ Admin user %s created", email)
	return nil
}
