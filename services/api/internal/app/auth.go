package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cinelog/internal/usertoken"
	"cinelog/internal/util"
	"cinelog/pkg/auth"
	"cinelog/pkg/domain"
	"cinelog/pkg/storage"
	"cinelog/pkg/store"
)

type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName" validate:"max=50"`
}

type LoginInput struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ProfileUpdate changes the owner-editable profile fields. Nil fields are
// unchanged; preferences are replaced as a whole.
type ProfileUpdate struct {
	FirstName   *string             `json:"firstName" validate:"omitempty,max=50"`
	LastName    *string             `json:"lastName" validate:"omitempty,max=50"`
	Bio         *string             `json:"bio" validate:"omitempty,max=500"`
	Avatar      *string             `json:"avatar" validate:"omitempty,url"`
	Preferences *domain.Preferences `json:"preferences"`
}

// Session is the result of a successful register, login or password change.
type Session struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an account. The first account becomes an admin.
func (a *App) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := check(in); err != nil {
		return Session{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return Session{}, invalid("%s", err.Error())
	}

	if _, ok, err := a.store.GetUserByEmail(ctx, in.Email); err != nil {
		return Session{}, fmt.Errorf("check email: %w", err)
	} else if ok {
		return Session{}, ErrEmailTaken
	}
	if _, ok, err := a.store.GetUserByUsername(ctx, in.Username); err != nil {
		return Session{}, fmt.Errorf("check username: %w", err)
	} else if ok {
		return Session{}, ErrUsernameTaken
	}

	hash, err := auth.HashPasswordWithCost(in.Password, a.passwordCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	count, err := a.store.UserCount(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("count users: %w", err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}

	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		Preferences:  domain.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, fmt.Errorf("%w: email or username already registered", ErrConflict)
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return a.session(ctx, user)
}

// Login accepts an email or a username as identifier.
func (a *App) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := check(in); err != nil {
		return Session{}, err
	}
	identifier := strings.TrimSpace(in.Identifier)
	var (
		user domain.User
		ok   bool
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, ok, err = a.store.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, ok, err = a.store.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !ok || !auth.CheckPassword(in.Password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, ErrUserInactive
	}

	now := a.now().UTC()
	user.LastLogin = &now
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return Session{}, fmt.Errorf("stamp last login: %w", err)
	}
	return a.session(ctx, user)
}

func (a *App) session(ctx context.Context, user domain.User) (Session, error) {
	token, expires, err := a.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: a.presentUser(ctx, user), Token: token, ExpiresAt: expires}, nil
}

// Authenticate resolves a bearer token to an active user.
func (a *App) Authenticate(ctx context.Context, token string) (domain.User, usertoken.Claims, error) {
	claims, err := a.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, usertoken.ErrInvalidToken) || errors.Is(err, usertoken.ErrRevokedToken) {
			return domain.User{}, usertoken.Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		util.LoggerFromContext(ctx).Error("token verification failed", "err", err)
		return domain.User{}, usertoken.Claims{}, fmt.Errorf("%w: cannot verify token", ErrUnavailable)
	}
	user, ok, err := a.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return domain.User{}, usertoken.Claims{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, usertoken.Claims{}, ErrUnauthorized
	}
	if !user.IsActive {
		return domain.User{}, usertoken.Claims{}, ErrUserInactive
	}
	return user, claims, nil
}

// Me returns the caller's own account.
func (a *App) Me(ctx context.Context, user domain.User) UserView {
	return a.presentUser(ctx, user)
}

// Logout revokes the presented token.
func (a *App) Logout(ctx context.Context, claims usertoken.Claims) error {
	if err := a.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (a *App) UpdateProfile(ctx context.Context, user domain.User, in ProfileUpdate) (UserView, error) {
	if err := check(in); err != nil {
		return UserView{}, err
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	oldAvatar := user.Avatar
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Preferences != nil {
		prefs := *in.Preferences
		if prefs.Theme == "" {
			prefs.Theme = user.Preferences.Theme
		}
		if !domain.ValidTheme(prefs.Theme) {
			return UserView{}, invalid("preferences.theme must be one of: light, dark, auto")
		}
		prefs.Language = strings.TrimSpace(prefs.Language)
		if prefs.Language == "" {
			prefs.Language = user.Preferences.Language
		}
		user.Preferences = prefs
	}
	user.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return UserView{}, lookupError(err, ErrUserNotFound)
	}
	if oldAvatar != user.Avatar {
		a.dropAvatar(ctx, oldAvatar)
	}
	return a.presentUser(ctx, user), nil
}

// ChangePassword re-hashes the password, revokes every earlier token of the
// user and returns a fresh session.
func (a *App) ChangePassword(ctx context.Context, user domain.User, current, next string) (Session, error) {
	if current == "" || next == "" {
		return Session{}, invalid("currentPassword and newPassword are required")
	}
	if !auth.CheckPassword(current, user.PasswordHash) {
		return Session{}, invalid("current password is incorrect")
	}
	if err := auth.ValidatePassword(next); err != nil {
		return Session{}, invalid("%s", err.Error())
	}
	hash, err := auth.HashPasswordWithCost(next, a.passwordCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return Session{}, lookupError(err, ErrUserNotFound)
	}
	// Token timestamps come from the wall clock.
	if err := a.tokens.RevokeUser(ctx, user.ID, time.Now()); err != nil {
		return Session{}, fmt.Errorf("revoke tokens: %w", err)
	}
	return a.session(ctx, user)
}

// MaxAvatarBytes is the upload cap the server enforces on the request body.
func (a *App) MaxAvatarBytes() int64 {
	return a.maxAvatarBytes
}

// UploadAvatar stores an image in object storage and points the profile
// at it. The previous uploaded avatar is removed.
func (a *App) UploadAvatar(ctx context.Context, user domain.User, r io.Reader, size int64, contentType string) (UserView, error) {
	if a.objects == nil {
		return UserView{}, fmt.Errorf("%w: avatar storage is not configured", ErrUnavailable)
	}
	if size <= 0 {
		return UserView{}, invalid("avatar is required")
	}
	if size > a.maxAvatarBytes {
		return UserView{}, invalid("avatar must be at most %d bytes", a.maxAvatarBytes)
	}
	key, ok := storage.AvatarKey(user.ID, contentType, util.NewID())
	if !ok {
		return UserView{}, invalid("avatar must be a jpeg, png or webp image")
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return UserView{}, fmt.Errorf("store avatar: %w", err)
	}

	oldAvatar := user.Avatar
	user.Avatar = key
	user.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateUser(ctx, user); err != nil {
		a.dropAvatar(ctx, key)
		return UserView{}, lookupError(err, ErrUserNotFound)
	}
	a.dropAvatar(ctx, oldAvatar)
	return a.presentUser(ctx, user), nil
}

// dropAvatar deletes an uploaded avatar object. Failures only leave an
// orphaned object behind, so they are logged.
func (a *App) dropAvatar(ctx context.Context, avatar string) {
	if a.objects == nil || !storage.IsObjectKey(avatar) {
		return
	}
	if err := a.objects.Delete(ctx, avatar); err != nil {
		util.LoggerFromContext(ctx).Warn("delete avatar failed", "key", avatar, "err", err)
	}
}
