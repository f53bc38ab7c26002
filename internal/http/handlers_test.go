package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/cinemateca/internal/auth"
	"github.com/Clark-Hu/cinemateca/internal/config"
	"github.com/Clark-Hu/cinemateca/internal/domain"
	"github.com/Clark-Hu/cinemateca/internal/repository"
	"github.com/Clark-Hu/cinemateca/internal/store"
	"github.com/Clark-Hu/cinemateca/internal/testdb"
)

const testSecret = "handler-tests-secret-0123456789abcdef"

func buildTestServer(tb testing.TB) *Server {
	tb.Helper()
	return buildTestServerWith(tb, nil)
}

// buildTestServerWith lets a test adjust the config before the router is built.
func buildTestServerWith(tb testing.TB, tweak func(*config.Config)) *Server {
	tb.Helper()
	cfg := config.Config{
		Port:                    "0",
		ReadTimeoutSecs:         15,
		WriteTimeoutSecs:        15,
		IdleTimeoutSecs:         60,
		CORSAllowedOrigins:      []string{"*"},
		AuthRateLimitRequests:   10000,
		AuthRateLimitWindowSecs: 60,
	}
	if tweak != nil {
		tweak(&cfg)
	}

	db := testdb.Start(tb)
	tb.Cleanup(db.Close)

	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		tb.Fatalf("token manager: %v", err)
	}
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hasher: %v", err)
	}

	logger := zerolog.Nop()
	st := store.NewWithPool(db.Pool, logger)
	return New(cfg, st, repository.NewWithPool(db.Pool), tokens, hasher, logger)
}

// seedUser stores an account with a real hash and returns it with a signed token.
func seedUser(tb testing.TB, srv *Server, username, password, role string) (domain.User, string) {
	tb.Helper()
	hash, err := srv.hasher.Hash(password)
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	user, err := srv.repo.Users.Create(context.Background(), repository.UserCreateParams{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		RoleName:     role,
	})
	if err != nil {
		tb.Fatalf("create user %q: %v", username, err)
	}
	token, err := srv.tokens.Issue(user)
	if err != nil {
		tb.Fatalf("issue token: %v", err)
	}
	return user, token
}

func doRequest(tb testing.TB, srv *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	tb.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			tb.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(tb testing.TB, rec *httptest.ResponseRecorder, dst any) {
	tb.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		tb.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func expectError(tb testing.TB, rec *httptest.ResponseRecorder, status int, kind errorKind) {
	tb.Helper()
	if rec.Code != status {
		tb.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var body errorResponse
	decodeBody(tb, rec, &body)
	if body.Code != kind {
		tb.Fatalf("codigo = %q, want %q", body.Code, kind)
	}
	if body.Message == "" {
		tb.Fatalf("mensaje is empty")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := buildTestServer(t)

	register := map[string]string{
		"nombreUsuario": "lucia",
		"correo":        "lucia@example.com",
		"contraseña":    "s3creta",
	}
	rec := doRequest(t, srv, http.MethodPost, "/usuarios/registro", register, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var session sessionResponse
	decodeBody(t, rec, &session)
	if session.Token == "" || session.User.Username != "lucia" {
		t.Fatalf("unexpected session %+v", session)
	}

	dup := doRequest(t, srv, http.MethodPost, "/usuarios/registro", map[string]string{
		"nombreUsuario": "otra",
		"correo":        "lucia@example.com",
		"contraseña":    "x",
	}, "")
	expectError(t, dup, http.StatusBadRequest, kindConflict)

	users, err := srv.repo.Users.List(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}

	login := doRequest(t, srv, http.MethodPost, "/login", map[string]string{
		"nombreUsuario": "lucia",
		"contraseña":    "s3creta",
	}, "")
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", login.Code, login.Body.String())
	}
	decodeBody(t, login, &session)
	claims, err := srv.tokens.Verify(session.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.UserID != users[0].ID || claims.Role != domain.RoleClient {
		t.Fatalf("claims = %+v", claims)
	}

	wrong := doRequest(t, srv, http.MethodPost, "/login", map[string]string{
		"nombreUsuario": "lucia@example.com",
		"contraseña":    "nope",
	}, "")
	expectError(t, wrong, http.StatusUnauthorized, kindUnauthenticated)
	if strings.Contains(wrong.Body.String(), "token") {
		t.Fatalf("failed login leaked a token: %s", wrong.Body.String())
	}
}

func TestRegister_Validation(t *testing.T) {
	srv := buildTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed", "{"},
		{"missing password", `{"nombreUsuario":"a","correo":"a@example.com"}`},
		{"bad email", `{"nombreUsuario":"a","correo":"nope","contraseña":"x"}`},
		{"unknown field", `{"nombreUsuario":"a","correo":"a@example.com","contraseña":"x","rol":"Administrador"}`},
		{"password too long", fmt.Sprintf(`{"nombreUsuario":"a","correo":"a@example.com","contraseña":%q}`, strings.Repeat("x", 73))},
		{"multibyte password over 72 bytes", fmt.Sprintf(`{"nombreUsuario":"a","correo":"a@example.com","contraseña":%q}`, strings.Repeat("ñ", 40))},
		{"blank username", `{"nombreUsuario":"   ","correo":"a@example.com","contraseña":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/usuarios/registro", tt.body, "")
			expectError(t, rec, http.StatusBadRequest, kindValidation)
		})
	}

	users, err := srv.repo.Users.List(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("rejected registrations stored %d users", len(users))
	}

	rec := doRequest(t, srv, http.MethodPost, "/usuarios/registro", map[string]string{
		"nombreUsuario": "nuñez",
		"correo":        "nunez@example.com",
		"contraseña":    strings.Repeat("ñ", 36),
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("72-byte password status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRateLimit(t *testing.T) {
	badLogin := map[string]string{"nombreUsuario": "nadie", "contraseña": "nope"}

	t.Run("zero disables the limiter", func(t *testing.T) {
		srv := buildTestServerWith(t, func(c *config.Config) { c.AuthRateLimitRequests = 0 })
		for i := 0; i < 5; i++ {
			rec := doRequest(t, srv, http.MethodPost, "/login", badLogin, "")
			expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)
		}
	})

	t.Run("over the limit answers json 429", func(t *testing.T) {
		srv := buildTestServerWith(t, func(c *config.Config) { c.AuthRateLimitRequests = 1 })
		rec := doRequest(t, srv, http.MethodPost, "/login", badLogin, "")
		expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)

		rec = doRequest(t, srv, http.MethodPost, "/login", badLogin, "")
		expectError(t, rec, http.StatusTooManyRequests, kindRateLimited)
	})
}

func TestLogin_InactiveAccount(t *testing.T) {
	srv := buildTestServer(t)
	user, _ := seedUser(t, srv, "mario", "clave", domain.RoleClient)
	if _, err := srv.repo.Users.ToggleActive(context.Background(), user.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/login", map[string]string{
		"nombreUsuario": "mario",
		"contraseña":    "clave",
	}, "")
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)
}

func TestCreateMovie_WithCast(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	_, clientToken := seedUser(t, srv, "cliente", "client-pass", domain.RoleClient)

	actor, err := srv.repo.Actors.Create(context.Background(), repository.PersonParams{FirstName: "Timothée", LastName: "Chalamet"})
	if err != nil {
		t.Fatalf("create actor: %v", err)
	}
	body := map[string]any{
		"Titulo":      "Dune",
		"AnioEstreno": 2021,
		"actores":     []map[string]any{{"IdActor": actor.ID, "NombrePersonaje": "Paul"}},
	}

	rec := doRequest(t, srv, http.MethodPost, "/peliculas/registro", body, "")
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)

	rec = doRequest(t, srv, http.MethodPost, "/peliculas/registro", body, clientToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodPost, "/peliculas/registro", body, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created movieEnvelope
	decodeBody(t, rec, &created)
	if created.Movie.Status != domain.MoviePublished || created.Movie.PublishedAt == nil {
		t.Fatalf("expected published movie, got %+v", created.Movie)
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/peliculas/%d", created.Movie.ID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got movieResponse
	decodeBody(t, rec, &got)
	if len(got.Cast) != 1 || got.Cast[0].CharacterName == nil || *got.Cast[0].CharacterName != "Paul" {
		t.Fatalf("cast = %+v", got.Cast)
	}
	if got.Reviews == nil || len(got.Reviews) != 0 {
		t.Fatalf("reviews = %+v, want empty list", got.Reviews)
	}
}

func TestCreateMovie_UnknownActorRollsBack(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	rec := doRequest(t, srv, http.MethodPost, "/peliculas/registro", map[string]any{
		"Titulo":      "Fantasma",
		"AnioEstreno": 2020,
		"actores":     []map[string]any{{"IdActor": 9999}},
	}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)

	rec = doRequest(t, srv, http.MethodGet, "/admin/peliculas", nil, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("movie row survived rollback: %s", rec.Body.String())
	}
}

func TestUpdateMovie_Partial(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	movie, err := srv.repo.Movies.Create(context.Background(), repository.MovieCreateParams{
		Title:       "Roma",
		Synopsis:    strPtr("Ciudad de México, 1970"),
		ReleaseYear: 2018,
		Status:      domain.MovieDraft,
	})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPut, fmt.Sprintf("/peliculas/actualizar/%d", movie.ID), map[string]any{
		"AnioEstreno": 2019,
		"Titulo":      "  ",
		"Estado":      "Publicado",
	}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated movieEnvelope
	decodeBody(t, rec, &updated)
	m := updated.Movie
	if m.Title != "Roma" || m.ReleaseYear != 2019 || m.Synopsis == nil || *m.Synopsis != "Ciudad de México, 1970" {
		t.Fatalf("partial update clobbered fields: %+v", m)
	}
	if m.Status != domain.MoviePublished || m.PublishedAt == nil {
		t.Fatalf("publish not applied: %+v", m)
	}

	rec = doRequest(t, srv, http.MethodPut, "/peliculas/actualizar/4242", map[string]any{"AnioEstreno": 2000}, adminToken)
	expectError(t, rec, http.StatusNotFound, kindNotFound)
}

func TestPublicListings_HideDrafts(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	ctx := context.Background()

	if _, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Title: "Visible", ReleaseYear: 2001, Status: domain.MoviePublished}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Title: "Oculta", ReleaseYear: 2002, Status: domain.MovieDraft}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/peliculas", nil, "")
	var public []movieResponse
	decodeBody(t, rec, &public)
	if len(public) != 1 || public[0].Title != "Visible" {
		t.Fatalf("public list = %+v", public)
	}

	rec = doRequest(t, srv, http.MethodGet, "/admin/peliculas", nil, adminToken)
	var all []adminMovieResponse
	decodeBody(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("admin list = %+v", all)
	}
	for _, m := range all {
		if m.DirectorName != noDirector {
			t.Fatalf("director name = %q, want %q", m.DirectorName, noDirector)
		}
	}
}

func TestReplaceCast(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	ctx := context.Background()

	a1, _ := srv.repo.Actors.Create(ctx, repository.PersonParams{FirstName: "Ana", LastName: "Uno"})
	a2, _ := srv.repo.Actors.Create(ctx, repository.PersonParams{FirstName: "Beto", LastName: "Dos"})
	movie, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{
		Title:       "Reparto",
		ReleaseYear: 2010,
		Cast:        []domain.CastAssignment{{ActorID: a1.ID}},
	})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}

	path := fmt.Sprintf("/peliculas/%d/actores", movie.ID)
	rec := doRequest(t, srv, http.MethodPost, path, map[string]any{
		"actores": []map[string]any{{"IdActor": a2.ID, "NombrePersonaje": "Villano"}},
	}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, path, nil, adminToken)
	var cast []castMemberResponse
	decodeBody(t, rec, &cast)
	if len(cast) != 1 || cast[0].ActorID != a2.ID {
		t.Fatalf("cast after replace = %+v", cast)
	}

	rec = doRequest(t, srv, http.MethodPost, "/peliculas/777/actores", map[string]any{"actores": []any{}}, adminToken)
	expectError(t, rec, http.StatusNotFound, kindNotFound)

	rec = doRequest(t, srv, http.MethodGet, path, nil, "")
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)
}

func TestDeleteDirector_InUse(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	ctx := context.Background()

	director, err := srv.repo.Directors.Create(ctx, repository.PersonParams{FirstName: "Denis", LastName: "Villeneuve"})
	if err != nil {
		t.Fatalf("create director: %v", err)
	}
	if _, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Title: "Arrival", ReleaseYear: 2016, DirectorID: &director.ID}); err != nil {
		t.Fatalf("create movie: %v", err)
	}

	path := fmt.Sprintf("/directores/%d", director.ID)
	rec := doRequest(t, srv, http.MethodDelete, path, nil, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindConflict)

	rec = doRequest(t, srv, http.MethodGet, path, nil, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("director should still be readable, status = %d", rec.Code)
	}
	var got directorResponse
	decodeBody(t, rec, &got)
	if len(got.Movies) != 1 || got.Movies[0].Title != "Arrival" {
		t.Fatalf("filmography = %+v", got.Movies)
	}

	spare, _ := srv.repo.Directors.Create(ctx, repository.PersonParams{FirstName: "Sin", LastName: "Obra"})
	sparePath := fmt.Sprintf("/directores/%d", spare.ID)
	rec = doRequest(t, srv, http.MethodDelete, sparePath, nil, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, srv, http.MethodGet, sparePath, nil, adminToken)
	expectError(t, rec, http.StatusNotFound, kindNotFound)
}

func TestPeople_CreateAndUpdate(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	rec := doRequest(t, srv, http.MethodPost, "/actores", map[string]any{
		"Nombres":         "Penélope",
		"Apellidos":       "Cruz",
		"FechaNacimiento": "1974-04-28",
	}, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created actorEnvelope
	decodeBody(t, rec, &created)
	if created.Actor.BirthDate == nil || *created.Actor.BirthDate != "1974-04-28" {
		t.Fatalf("birth date = %v", created.Actor.BirthDate)
	}

	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/actores/%d", created.Actor.ID), map[string]any{
		"Apellidos": "Cruz Sánchez",
	}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated actorEnvelope
	decodeBody(t, rec, &updated)
	if updated.Actor.FirstName != "Penélope" || updated.Actor.LastName != "Cruz Sánchez" {
		t.Fatalf("updated = %+v", updated.Actor)
	}

	rec = doRequest(t, srv, http.MethodPost, "/directores", map[string]any{
		"Nombres":         "Pedro",
		"Apellidos":       "Almodóvar",
		"FechaNacimiento": "25/09/1949",
	}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)

	rec = doRequest(t, srv, http.MethodPost, "/directores", map[string]any{
		"Nombres":   strings.Repeat("n", 50),
		"Apellidos": strings.Repeat("a", 50),
	}, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("50-char names status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, srv, http.MethodPost, "/directores", map[string]any{
		"Nombres":   strings.Repeat("n", 51),
		"Apellidos": "Largo",
	}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)
	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/actores/%d", created.Actor.ID), map[string]any{
		"Apellidos": strings.Repeat("a", 60),
	}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)
}

func TestGenres_CRUD(t *testing.T) {
	srv := buildTestServer(t)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	rec := doRequest(t, srv, http.MethodPost, "/generos", map[string]string{"NombreGenero": "Ciencia ficción"}, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created genreEnvelope
	decodeBody(t, rec, &created)

	rec = doRequest(t, srv, http.MethodPost, "/generos", map[string]string{"NombreGenero": "Ciencia ficción"}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindConflict)

	rec = doRequest(t, srv, http.MethodPost, "/generos", map[string]string{"NombreGenero": strings.Repeat("g", 30)}, adminToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("30-char genre status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, srv, http.MethodPost, "/generos", map[string]string{"NombreGenero": strings.Repeat("g", 40)}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)

	rec = doRequest(t, srv, http.MethodGet, "/generos", nil, "")
	var genres []genreResponse
	decodeBody(t, rec, &genres)
	found := false
	for _, g := range genres {
		if g.ID == created.Genre.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("created genre missing from %+v", genres)
	}

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/generos/%d", created.Genre.ID), nil, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/generos/%d", created.Genre.ID), nil, "")
	expectError(t, rec, http.StatusNotFound, kindNotFound)
}

func TestReviews_OwnershipAndAverage(t *testing.T) {
	srv := buildTestServer(t)
	owner, ownerToken := seedUser(t, srv, "duena", "pass-1", domain.RoleClient)
	_, otherToken := seedUser(t, srv, "intruso", "pass-2", domain.RoleClient)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	movie, err := srv.repo.Movies.Create(context.Background(), repository.MovieCreateParams{Title: "Amores perros", ReleaseYear: 2000})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/peliculas/%d/resenas", movie.ID), nil, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty reviews = %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPost, "/resenas", map[string]any{
		"IdPelicula":   movie.ID,
		"TituloResena": "Intensa",
		"CuerpoResena": "Tres historias cruzadas.",
		"Puntuacion":   8,
	}, ownerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create review status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created reviewEnvelope
	decodeBody(t, rec, &created)
	if created.Review.UserID != owner.ID || created.Review.Status != domain.ReviewPending {
		t.Fatalf("review = %+v", created.Review)
	}
	if created.Average.Average == nil || *created.Average.Average != 8 || created.Average.Count != 1 {
		t.Fatalf("average = %+v", created.Average)
	}

	rec = doRequest(t, srv, http.MethodPost, "/resenas", map[string]any{
		"IdPelicula":   movie.ID,
		"IdUsuario":    owner.ID,
		"TituloResena": "Suplantada",
		"CuerpoResena": "No debería guardarse.",
		"Puntuacion":   1,
	}, otherToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	reviewPath := fmt.Sprintf("/resenas/%d", created.Review.ID)
	rec = doRequest(t, srv, http.MethodPut, reviewPath, map[string]any{"Puntuacion": 2}, otherToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodPut, reviewPath, map[string]any{"Puntuacion": 6}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated reviewEnvelope
	decodeBody(t, rec, &updated)
	if updated.Review.Title != "Intensa" || updated.Average.Average == nil || *updated.Average.Average != 6 {
		t.Fatalf("updated = %+v", updated)
	}

	rec = doRequest(t, srv, http.MethodDelete, reviewPath, nil, otherToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodDelete, reviewPath, nil, ownerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	var deleted reviewDeleteResponse
	decodeBody(t, rec, &deleted)
	if deleted.Average.Average != nil || deleted.Average.Count != 0 {
		t.Fatalf("average after delete = %+v", deleted.Average)
	}

	rec = doRequest(t, srv, http.MethodDelete, reviewPath, nil, ownerToken)
	expectError(t, rec, http.StatusNotFound, kindNotFound)
}

func TestReviews_ModerationAndListings(t *testing.T) {
	srv := buildTestServer(t)
	author, authorToken := seedUser(t, srv, "critica", "pass-1", domain.RoleClient)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	ctx := context.Background()

	movie, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Title: "Nueve reinas", ReleaseYear: 2000})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}
	review, _, err := srv.repo.Reviews.Create(ctx, repository.ReviewCreateParams{
		MovieID: movie.ID, UserID: author.ID, Title: "Estafa", Body: "Gran guion.", Score: 9,
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	moderatePath := fmt.Sprintf("/admin/resenas/%d/estado", review.ID)
	rec := doRequest(t, srv, http.MethodPut, moderatePath, map[string]string{"Estado": "Publicado"}, authorToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodPut, moderatePath, map[string]string{"Estado": "Archivado"}, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)

	rec = doRequest(t, srv, http.MethodPut, moderatePath, map[string]string{"Estado": "Rechazado"}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rejected reviewEnvelope
	decodeBody(t, rec, &rejected)
	if rejected.Review.Status != domain.ReviewRejected || rejected.Average.Average != nil || rejected.Average.Count != 0 {
		t.Fatalf("rejected = %+v", rejected)
	}

	rec = doRequest(t, srv, http.MethodPut, moderatePath, map[string]string{"Estado": "Publicado"}, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("moderate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var published reviewEnvelope
	decodeBody(t, rec, &published)
	if published.Average.Average == nil || *published.Average.Average != 9 || published.Average.Count != 1 {
		t.Fatalf("average after publish = %+v", published.Average)
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/peliculas/%d", movie.ID), nil, "")
	var detail movieResponse
	decodeBody(t, rec, &detail)
	if len(detail.Reviews) != 1 || detail.Reviews[0].Author == nil || detail.Reviews[0].Author.Username != "critica" {
		t.Fatalf("detail reviews = %+v", detail.Reviews)
	}

	for _, path := range []string{
		fmt.Sprintf("/usuarios/%d/resenas", author.ID),
		fmt.Sprintf("/resenas/usuario/%d", author.ID),
	} {
		rec = doRequest(t, srv, http.MethodGet, path, nil, authorToken)
		var mine []reviewResponse
		decodeBody(t, rec, &mine)
		if len(mine) != 1 || mine[0].Movie == nil || mine[0].Movie.Title != "Nueve reinas" {
			t.Fatalf("%s = %+v", path, mine)
		}
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/peliculas/%d/actualizar-promedio", movie.ID), nil, "")
	var avg averageResponse
	decodeBody(t, rec, &avg)
	if avg.Average == nil || *avg.Average != 9 || avg.Count != 1 {
		t.Fatalf("refresh average = %+v", avg)
	}

	rec = doRequest(t, srv, http.MethodGet, "/peliculas/31337/actualizar-promedio", nil, "")
	expectError(t, rec, http.StatusNotFound, kindNotFound)
}

func TestUsers_AdminAndSelf(t *testing.T) {
	srv := buildTestServer(t)
	user, userToken := seedUser(t, srv, "pablo", "pass-1", domain.RoleClient)
	other, _ := seedUser(t, srv, "rosa", "pass-2", domain.RoleClient)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)

	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/usuarios/%d", user.ID), nil, userToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("self status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/usuarios/%d", other.ID), nil, userToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodGet, "/admin/usuarios", nil, userToken)
	expectError(t, rec, http.StatusForbidden, kindForbidden)

	rec = doRequest(t, srv, http.MethodGet, "/admin/usuarios", nil, adminToken)
	var users []userResponse
	decodeBody(t, rec, &users)
	if len(users) != 3 {
		t.Fatalf("users = %+v", users)
	}

	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/admin/usuarios/%d/estado", other.ID), nil, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	var toggled userStatusResponse
	decodeBody(t, rec, &toggled)
	if toggled.User.Active || toggled.User.ID != other.ID {
		t.Fatalf("toggled = %+v", toggled)
	}
}

func TestAuth_TokenFailures(t *testing.T) {
	srv := buildTestServer(t)
	user, _ := seedUser(t, srv, "eva", "pass", domain.RoleClient)

	issued := time.Now().Add(-2 * time.Hour)
	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:   user.ID,
		Role:     user.RoleName,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/directores", nil, stale)
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)
	if !strings.Contains(rec.Body.String(), "expirado") {
		t.Fatalf("expected expiry message, got %s", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/directores", nil, "not-a-jwt")
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)

	rec = doRequest(t, srv, http.MethodGet, "/directores", nil, "")
	expectError(t, rec, http.StatusUnauthorized, kindUnauthenticated)
}

func TestReports(t *testing.T) {
	srv := buildTestServer(t)
	author, _ := seedUser(t, srv, "lector", "pass", domain.RoleClient)
	_, adminToken := seedUser(t, srv, "admin", "admin-pass", domain.RoleAdmin)
	ctx := context.Background()

	genre, err := srv.repo.Genres.Create(ctx, "Drama")
	if err != nil {
		t.Fatalf("create genre: %v", err)
	}
	movie, err := srv.repo.Movies.Create(ctx, repository.MovieCreateParams{Title: "Relatos salvajes", ReleaseYear: 2014, GenreIDs: []int64{genre.ID}})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}
	if _, _, err := srv.repo.Reviews.Create(ctx, repository.ReviewCreateParams{MovieID: movie.ID, UserID: author.ID, Title: "t", Body: "b", Score: 7}); err != nil {
		t.Fatalf("create review: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/reportes/peliculas-puntuacion", nil, adminToken)
	var top []map[string]any
	decodeBody(t, rec, &top)
	if len(top) != 1 || top[0]["Pelicula"] != "Relatos salvajes" || top[0]["Director"] != noDirector {
		t.Fatalf("top rated = %+v", top)
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/reportes/peliculas-genero/%d", genre.ID), nil, adminToken)
	var byGenre []map[string]any
	decodeBody(t, rec, &byGenre)
	if len(byGenre) != 1 {
		t.Fatalf("by genre = %+v", byGenre)
	}

	rec = doRequest(t, srv, http.MethodGet, "/reportes/peliculas-genero/drama", nil, adminToken)
	expectError(t, rec, http.StatusBadRequest, kindValidation)

	rec = doRequest(t, srv, http.MethodGet, "/reportes/peliculas-genero/999", nil, adminToken)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty report = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_JSONFallbacks(t *testing.T) {
	srv := buildTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/no-existe", nil, "")
	expectError(t, rec, http.StatusNotFound, kindNotFound)

	rec = doRequest(t, srv, http.MethodGet, "/peliculas/1/desconocido", nil, "")
	expectError(t, rec, http.StatusNotFound, kindNotFound)

	rec = doRequest(t, srv, http.MethodPatch, "/generos/", nil, "")
	expectError(t, rec, http.StatusMethodNotAllowed, kindNotAllowed)

	rec = doRequest(t, srv, http.MethodPatch, "/login", nil, "")
	expectError(t, rec, http.StatusMethodNotAllowed, kindNotAllowed)
}

func TestRecoverer_RespondsWithJSON(t *testing.T) {
	srv := &Server{logger: zerolog.Nop()}
	h := srv.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	expectError(t, rec, http.StatusInternalServerError, kindInternal)
}

func TestHealthz(t *testing.T) {
	srv := buildTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func strPtr(s string) *string { return &s }
