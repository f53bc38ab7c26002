package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/metrics"
	"github.com/Clark-Hu/cinemateca/internal/repository"
)

// maxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const maxPasswordBytes = 72

type registerRequest struct {
	Username string `json:"nombreUsuario" validate:"required,max=50"`
	Email    string `json:"correo" validate:"required,email,max=100"`
	Password string `json:"contraseña" validate:"required"`
}

type loginRequest struct {
	Login    string `json:"nombreUsuario" validate:"required"`
	Password string `json:"contraseña" validate:"required"`
}

type sessionUser struct {
	ID       int64  `json:"id"`
	Username string `json:"nombreUsuario"`
	Email    string `json:"correo"`
}

type sessionResponse struct {
	Message string      `json:"mensaje"`
	User    sessionUser `json:"usuario"`
	Token   string      `json:"token"`
}

type roleResponse struct {
	Name string `json:"NombreRol"`
}

type userResponse struct {
	ID           int64        `json:"IdUsuario"`
	Username     string       `json:"NombreUsuario"`
	Email        string       `json:"Correo"`
	Active       bool         `json:"EstaActivo"`
	RegisteredAt time.Time    `json:"FechaRegistro"`
	Role         roleResponse `json:"Rol"`
}

type userStatus struct {
	ID       int64  `json:"id"`
	Username string `json:"nombreUsuario"`
	Active   bool   `json:"estaActivo"`
}

type userStatusResponse struct {
	Message string     `json:"mensaje"`
	User    userStatus `json:"usuario"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		s.respondError(w, kindValidation, "nombreUsuario es obligatorio")
		return
	}
	if len(req.Password) > maxPasswordBytes {
		s.respondError(w, kindValidation, "La contraseña no puede superar los 72 bytes")
		return
	}

	taken, err := s.repo.Users.ExistsByUsernameOrEmail(r.Context(), req.Username, req.Email)
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	if taken {
		s.respondError(w, kindConflict, "El nombre de usuario o correo ya está registrado")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("hash password failed")
		s.respondError(w, kindInternal, "Error al registrar usuario")
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		RoleName:     domain.RoleClient,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondError(w, kindConflict, "El nombre de usuario o correo ya está registrado")
			return
		}
		s.respondRepoError(w, r, err, "")
		return
	}

	s.respondSession(w, r, http.StatusCreated, "Usuario registrado exitosamente", user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	user, err := s.repo.Users.FindByLogin(r.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RecordAuthFailure("bad_credentials")
			s.respondError(w, kindUnauthenticated, "Usuario no encontrado")
			return
		}
		s.respondRepoError(w, r, err, "")
		return
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("user_id", user.ID).Msg("stored password hash unusable")
		}
		metrics.RecordAuthFailure("bad_credentials")
		s.respondError(w, kindUnauthenticated, "Contraseña incorrecta")
		return
	}

	if !user.Active {
		metrics.RecordAuthFailure("inactive_account")
		s.respondError(w, kindUnauthenticated, "La cuenta está desactivada")
		return
	}

	s.respondSession(w, r, http.StatusOK, "Inicio de sesión exitoso", user)
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int, message string, user domain.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue token failed")
		s.respondError(w, kindInternal, "Error al generar el token")
		return
	}
	s.respondJSON(w, status, sessionResponse{
		Message: message,
		User:    sessionUser{ID: user.ID, Username: user.Username, Email: user.Email},
		Token:   token,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if !auth.CanActOn(identity(r), id) {
		metrics.RecordAuthFailure("forbidden")
		s.respondError(w, kindForbidden, "Solo puedes consultar tu propia cuenta")
		return
	}

	user, err := s.repo.Users.GetByID(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Usuario no encontrado")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.Users.List(r.Context())
	if err != nil {
		s.respondRepoError(w, r, err, "")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := s.repo.Users.ToggleActive(r.Context(), id)
	if err != nil {
		s.respondRepoError(w, r, err, "Usuario no encontrado")
		return
	}

	message := "Usuario desactivado exitosamente"
	if user.Active {
		message = "Usuario activado exitosamente"
	}
	s.respondJSON(w, http.StatusOK, userStatusResponse{
		Message: message,
		User:    userStatus{ID: user.ID, Username: user.Username, Active: user.Active},
	})
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Active:       u.Active,
		RegisteredAt: u.RegisteredAt,
		Role:         roleResponse{Name: u.RoleName},
	}
}
