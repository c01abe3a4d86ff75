package service

import (
	"aerovision_backend/internal/model"
	"aerovision_backend/internal/testutil"
	"aerovision_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput() RegisterInput {
	return RegisterInput{
		Name:     "Luis Gómez",
		Email:    "Luis@Example.com ",
		Password: "secret123",
		DNI:      "87654321B",
	}
}

func TestRegisterAndResolveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, issued, err := f.auth.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.Equal(t, "luis@example.com", user.Email)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "secret123", user.Password)

	sess, err := f.sessions.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Equal(t, "luis@example.com", sess.Email)
	assert.False(t, sess.IsAdmin())
}

func TestRegisterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.auth.Register(ctx, registerInput())
	require.NoError(t, err)

	sameEmail := registerInput()
	sameEmail.Email = "LUIS@example.com"
	sameEmail.DNI = "11111111C"
	_, _, err = f.auth.Register(ctx, sameEmail)
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
	assert.ErrorIs(t, err, util.ErrRegistrationConflict)

	sameDNI := registerInput()
	sameDNI.Email = "otro@example.com"
	_, _, err = f.auth.Register(ctx, sameDNI)
	assert.ErrorIs(t, err, util.ErrDNIRegistered)

	// 冲突时不写入任何记录
	count, err := f.users.CountByRole(ctx, model.Student)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newFixture(t)

	in := registerInput()
	in.Password = "123"
	_, _, err := f.auth.Register(context.Background(), in)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.auth.Login(ctx, testutil.AdminEmail, "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = f.auth.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	admin, issued, err := f.auth.Login(ctx, " ADMIN@aerovision.com", testutil.AdminPassword)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	require.NotNil(t, admin.LastLogin)
	assert.True(t, issued.Session.IsAdmin())
}

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, issued, err := f.auth.Login(ctx, testutil.AdminEmail, testutil.AdminPassword)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, issued.Session))
	_, err = f.sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	// 重复登出无副作用
	assert.NoError(t, f.auth.Logout(ctx, issued.Session))
	assert.NoError(t, f.auth.Logout(ctx, nil))
}

func TestProfileAndPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.student1(t)

	_, err := f.auth.UpdateProfile(ctx, u.ID, "   ")
	assert.ErrorIs(t, err, util.ErrValidation)

	updated, err := f.auth.UpdateProfile(ctx, u.ID, "Ana María")
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)

	assert.ErrorIs(t, f.auth.ChangePassword(ctx, u.ID, "bad", "newsecret"), util.ErrInvalidCredentials)
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, u.ID, "secret123", "123"), util.ErrValidation)
	require.NoError(t, f.auth.ChangePassword(ctx, u.ID, "secret123", "newsecret"))

	_, _, err = f.auth.Login(ctx, u.Email, "newsecret")
	assert.NoError(t, err)

	_, err = f.auth.GetProfile(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestRedisSessionStore(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	sessions := NewSessionService(rdb, cfg)
	ctx := context.Background()

	user := testutil.CreateStudent(t, db, "Eva", "eva@example.com", "99999999Z")
	issued, err := sessions.Create(ctx, user)
	require.NoError(t, err)
	assert.True(t, mr.Exists(sessionKeyPrefix+issued.Session.ID))

	sess, err := sessions.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "eva@example.com", sess.Email)

	// Redis 中的 TTL 到期后会话失效，即使令牌签名仍然有效
	mr.FastForward(cfg.JWT.ExpireTime + time.Second)
	_, err = sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	_, err = sessions.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestUpdateProfileRefreshesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.student1(t)

	_, issued, err := f.auth.Login(ctx, u.Email, "secret123")
	require.NoError(t, err)

	_, err = f.auth.UpdateProfile(ctx, u.ID, "Ana María")
	require.NoError(t, err)

	sess, err := f.sessions.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ana María", sess.Name)
	// 返回给调用方的旧会话对象不被修改
	assert.Equal(t, "Ana Pérez", issued.Session.Name)
}

func TestRedisSessionRename(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	db := testutil.NewDB(t)
	sessions := NewSessionService(rdb, testutil.Config())
	ctx := context.Background()

	user := testutil.CreateStudent(t, db, "Eva", "eva@example.com", "99999999Z")
	other := testutil.CreateStudent(t, db, "Iker", "iker@example.com", "88888888Y")

	laptop, err := sessions.Create(ctx, user)
	require.NoError(t, err)
	phone, err := sessions.Create(ctx, user)
	require.NoError(t, err)
	foreign, err := sessions.Create(ctx, other)
	require.NoError(t, err)
	require.NoError(t, sessions.Destroy(ctx, phone.Session.ID))

	require.NoError(t, sessions.Rename(ctx, user.ID, "Eva Ruiz"))

	sess, err := sessions.Resolve(ctx, laptop.Token)
	require.NoError(t, err)
	assert.Equal(t, "Eva Ruiz", sess.Name)
	assert.Greater(t, mr.TTL(sessionKeyPrefix+laptop.Session.ID), time.Duration(0))

	sess, err = sessions.Resolve(ctx, foreign.Token)
	require.NoError(t, err)
	assert.Equal(t, "Iker", sess.Name)

	// 已登出的会话不会被重新写入，并从索引中移除
	_, err = sessions.Resolve(ctx, phone.Token)
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
	members, err := mr.Members(userSessionKey(user.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{laptop.Session.ID}, members)
}
