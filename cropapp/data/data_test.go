package data

import (
	"context"
	"errors"
	"testing"

	"github.com/harrison-roh/crop-disease-classification/cropapp/data/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	db.MemoryStore
	err error
}

func (s *failingStore) FindByPhone(ctx context.Context, phone string) (*db.Farmer, error) {
	return nil, s.err
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemory()
	dm := NewManager(store)

	require.NoError(t, dm.Register(ctx, "Amina", "0801", "Kaduna"))

	err := dm.Register(ctx, "Someone", "0801", "Kano")
	assert.True(t, errors.Is(err, ErrPhoneRegistered))
	assert.Equal(t, 1, store.Len())

	p, err := dm.Login(ctx, "0801")
	require.NoError(t, err)
	assert.Equal(t, &Profile{Name: "Amina", Phone: "0801", Location: "Kaduna"}, p)

	stored, err := store.FindByPhone(ctx, "0801")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreateAt.IsZero())
}

func TestRegisterMissingFields(t *testing.T) {
	dm := NewManager(db.NewMemory())

	for _, tc := range [][3]string{
		{"", "0801", "Kaduna"},
		{"Amina", "", "Kaduna"},
		{"Amina", "0801", ""},
	} {
		err := dm.Register(context.Background(), tc[0], tc[1], tc[2])
		assert.True(t, errors.Is(err, ErrMissingFields), "%v: %v", tc, err)
	}
}

func TestLoginErrors(t *testing.T) {
	dm := NewManager(db.NewMemory())

	_, err := dm.Login(context.Background(), "")
	assert.True(t, errors.Is(err, ErrPhoneRequired))

	_, err = dm.Login(context.Background(), "0000")
	assert.True(t, errors.Is(err, ErrInvalidPhone))
}

func TestStoreFailure(t *testing.T) {
	cause := errors.New("connection reset")
	dm := NewManager(&failingStore{err: cause})

	err := dm.Register(context.Background(), "Amina", "0801", "Kaduna")
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPhoneRegistered))

	_, err = dm.Login(context.Background(), "0801")
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrInvalidPhone))
}

func TestNew(t *testing.T) {
	dm, err := New(context.Background(), db.Config{Driver: db.DriverBadger})
	require.NoError(t, err)
	defer dm.Destroy()

	require.NoError(t, dm.Register(context.Background(), "Juma", "0700", "Arusha"))
	p, err := dm.Login(context.Background(), "0700")
	require.NoError(t, err)
	assert.Equal(t, "Arusha", p.Location)
}
