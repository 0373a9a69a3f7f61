package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/harrison-roh/crop-disease-classification/cropapp/data/db"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
)

var (
	ErrMissingFields   = errors.New("All fields required")
	ErrPhoneRegistered = errors.New("Phone already registered")
	ErrPhoneRequired   = errors.New("Phone required")
	ErrInvalidPhone    = errors.New("Invalid phone")
)

var validate = validator.New()

// Manager 농민 정보를 관리
type Manager struct {
	Store db.FarmerStore
}

// Profile 로그인 응답에 포함되는 농민 정보
type Profile struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// Register 농민 등록
//
// 중복 확인과 삽입은 원자적이지 않아 동시 요청 시 같은 번호가 두 번 등록될 수 있다.
func (dm *Manager) Register(ctx context.Context, name, phone, location string) error {
	f := db.Farmer{
		Name:     name,
		Phone:    phone,
		Location: location,
	}
	if err := validate.Struct(f); err != nil {
		return ErrMissingFields
	}

	_, err := dm.Store.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return ErrPhoneRegistered
	case !errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("Fail to look up farmer: %w", err)
	}

	f.ID = uuid.New().String()
	f.CreateAt = time.Now().UTC()

	if err := dm.Store.Insert(ctx, f); err != nil {
		return fmt.Errorf("Fail to register farmer: %w", err)
	}

	return nil
}

// Login 전화번호로 농민 정보 조회
func (dm *Manager) Login(ctx context.Context, phone string) (*Profile, error) {
	if phone == "" {
		return nil, ErrPhoneRequired
	}

	f, err := dm.Store.FindByPhone(ctx, phone)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidPhone
	}
	if err != nil {
		return nil, fmt.Errorf("Fail to look up farmer: %w", err)
	}

	return &Profile{
		Name:     f.Name,
		Phone:    f.Phone,
		Location: f.Location,
	}, nil
}

// Destroy Data manager 해제
func (dm *Manager) Destroy() {
	if err := dm.Store.Destroy(); err != nil {
		logging.Error().Err(err).Str("store", dm.Store.Name()).Msg("Store close failed")
	} else {
		logging.Info().Str("store", dm.Store.Name()).Msg("Store successfully closed")
	}
}

// NewManager 저장소로 Data manager 생성
func NewManager(store db.FarmerStore) *Manager {
	return &Manager{
		Store: store,
	}
}

// New 새로운 Data manager 생성
func New(ctx context.Context, cfg db.Config) (*Manager, error) {
	store, err := db.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("store", store.Name()).Msg("Store successfully initialized")

	return NewManager(store), nil
}
