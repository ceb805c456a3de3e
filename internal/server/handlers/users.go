package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/buyandsell/internal/errors"
	"github.com/maruel/buyandsell/internal/models"
	"github.com/maruel/buyandsell/internal/server/auth"
	"github.com/maruel/buyandsell/internal/server/dto"
	"github.com/maruel/buyandsell/internal/storage"
	"github.com/maruel/ksid"
)

// avatarField is the multipart field holding the avatar image.
const avatarField = "avatar"

// UserHandler handles registration, login and profile requests.
type UserHandler struct {
	users   *storage.UserService
	uploads *storage.UploadStore
	tokens  *auth.Tokens
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users *storage.UserService, uploads *storage.UploadStore, tokens *auth.Tokens) *UserHandler {
	return &UserHandler{users: users, uploads: uploads, tokens: tokens}
}

// Register creates an account.
func (h *UserHandler) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	user, err := h.users.Create(req.Email, req.Password, req.Name, req.Type)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apierrors.Conflict("User already exists")
		}
		return nil, storageError(err, nil)
	}
	slog.InfoContext(ctx, "User registered", "user", user.ID, "type", user.Type)
	return dto.NewUserResponse(user), nil
}

// Login checks credentials and returns a bearer token.
func (h *UserHandler) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		return nil, storageError(err, nil)
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		return nil, apierrors.InternalWithError("Failed to generate token", err)
	}
	return &dto.LoginResponse{Token: token, User: dto.NewUserResponse(user)}, nil
}

// Me returns the authenticated user.
func (h *UserHandler) Me(ctx context.Context, user *models.User, req *dto.GetMeRequest) (*dto.UserResponse, error) {
	return dto.NewUserResponse(user), nil
}

// UploadAvatar stores the multipart "avatar" file and makes it the user's
// avatar. Users may only change their own avatar.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := models.UserFromContext(ctx)
	if !ok {
		writeErrorResponse(ctx, w, apierrors.Unauthorized())
		return
	}
	id, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorResponse(ctx, w, apierrors.InvalidFormat("id", err))
		return
	}
	if id != user.ID {
		writeErrorResponse(ctx, w, apierrors.Forbidden("Cannot change another user's avatar"))
		return
	}

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeErrorResponse(ctx, w, apierrors.PayloadTooLarge(maxBytesErr.Limit))
			return
		}
		writeErrorResponse(ctx, w, apierrors.BadRequest("Invalid multipart form"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.ErrorContext(ctx, "Failed to remove multipart files", "err", err)
		}
	}()
	file, header, err := r.FormFile(avatarField)
	if err != nil {
		writeErrorResponse(ctx, w, apierrors.MissingField(avatarField))
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.ErrorContext(ctx, "Failed to close uploaded file", "err", err)
		}
	}()

	name, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		writeErrorResponse(ctx, w, storageError(err, nil))
		return
	}
	updated, err := h.users.SetAvatar(user.ID, name)
	if err != nil {
		_ = h.uploads.Remove(name)
		writeErrorResponse(ctx, w, storageError(err, func() *apierrors.APIError { return apierrors.UserNotFound(user.ID.String()) }))
		return
	}
	if user.AvatarPath != "" && user.AvatarPath != models.DefaultAvatarPath {
		if err := h.uploads.Remove(user.AvatarPath); err != nil {
			slog.WarnContext(ctx, "Failed to remove previous avatar", "file", user.AvatarPath, "err", err)
		}
	}
	slog.InfoContext(ctx, "Avatar updated", "user", user.ID, "file", name)
	writeJSON(w, http.StatusOK, dto.NewUserResponse(updated))
}
