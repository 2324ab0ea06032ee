package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Username:  "alice_99",
		Email:     "alice@example.com",
		Password:  "correct horse",
		FirstName: "Alice",
		LastName:  "Jones",
	}
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	testDb := setupTestDB(t, "testdb_user_register")
	svc := NewUserService(testDb, testConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice_99", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Wrong password and unknown user look the same.
	_, err = svc.Authenticate(ctx, "alice_99", "wrong")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = svc.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestUserService_RegisterValidation(t *testing.T) {
	testDb := setupTestDB(t, "testdb_user_validation")
	svc := NewUserService(testDb, testConfig())
	ctx := context.Background()

	input := validRegisterInput()
	input.Username = "x"
	_, err := svc.Register(ctx, input)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	input = validRegisterInput()
	input.Email = "not-an-email"
	_, err = svc.Register(ctx, input)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	input = validRegisterInput()
	input.Password = "short"
	_, err = svc.Register(ctx, input)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUserService_DuplicateUsernameConflicts(t *testing.T) {
	testDb := setupTestDB(t, "testdb_user_duplicate")
	svc := NewUserService(testDb, testConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	// Same username, different email.
	dup := validRegisterInput()
	dup.Email = "other@example.com"
	_, err = svc.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrConflict)

	// Same email, different username.
	dup = validRegisterInput()
	dup.Username = "different_name"
	_, err = svc.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserService_UpdateProfile(t *testing.T) {
	testDb := setupTestDB(t, "testdb_user_update")
	svc := NewUserService(testDb, testConfig())
	ctx := context.Background()

	user, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, user.ID, map[string]interface{}{"first_name": "Alicia"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.FirstName)

	// Username and password are not updatable through the profile path.
	_, err = svc.UpdateProfile(ctx, user.ID, map[string]interface{}{"username": "new_name"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = svc.UpdateProfile(ctx, user.ID, map[string]interface{}{"password": "hunter2!"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateProfile(ctx, user.ID, map[string]interface{}{"email": "nope"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateProfile(ctx, "no-such-user", map[string]interface{}{"first_name": "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}
