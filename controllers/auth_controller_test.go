package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authEnv(t *testing.T) *testEnv {
	e := newTestEnv(t)
	a := NewAuthController(e.db)
	u := NewUserController(e.db)
	e.router.POST("/auth/register", a.Register)
	e.router.POST("/auth/login", a.Login)
	e.router.POST("/auth/logout", e.auth, a.Logout)
	e.router.GET("/auth/me", e.auth, a.Me)
	e.router.GET("/users/profile", e.auth, u.GetProfile)
	e.router.PUT("/users/profile", e.auth, u.UpdateProfile)
	return e
}

type authPayload struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func TestRegisterLoginMeLogout(t *testing.T) {
	e := authEnv(t)

	var reg authPayload
	decode(t, e.request(http.MethodPost, "/auth/register", map[string]string{
		"name": "Ana", "email": "Ana@Example.com", "password": "secret1", "role": "student",
	}, ""), http.StatusCreated, &reg)
	require.NotEmpty(t, reg.Token)
	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.Equal(t, "student", reg.User.Role)
	assert.Equal(t, "none", reg.User.Streak.PlantLevel)

	w := e.request(http.MethodPost, "/auth/register", map[string]string{
		"name": "Ana 2", "email": "ana@example.com", "password": "secret1",
	}, "")
	env := decode(t, w, http.StatusConflict, nil)
	assert.Equal(t, 40901, env.Code)

	w = e.request(http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var login authPayload
	decode(t, e.request(http.MethodPost, "/auth/login", map[string]string{"email": "ANA@example.com", "password": "secret1"}, ""), http.StatusOK, &login)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotContains(t, e.request(http.MethodGet, "/auth/me", nil, login.Token).Body.String(), "password")

	var me userResponse
	decode(t, e.request(http.MethodGet, "/auth/me", nil, login.Token), http.StatusOK, &me)
	assert.Equal(t, "Ana", me.Name)
	assert.False(t, me.IsAdmin)

	decode(t, e.request(http.MethodPost, "/auth/logout", nil, login.Token), http.StatusOK, nil)
	assert.Equal(t, http.StatusUnauthorized, e.request(http.MethodGet, "/auth/me", nil, login.Token).Code)
}

func TestRegisterValidation(t *testing.T) {
	e := authEnv(t)
	cases := []map[string]string{
		{"email": "x@example.com", "password": "secret1"},
		{"name": "X", "email": "not-an-email", "password": "secret1"},
		{"name": "X", "email": "x@example.com", "password": "123"},
		{"name": "X", "email": "x@example.com", "password": "secret1", "role": "wizard"},
	}
	for _, body := range cases {
		w := e.request(http.MethodPost, "/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestUpdateProfile(t *testing.T) {
	e := authEnv(t)
	_, token := e.user("admin@moodbloom.app")

	var got userResponse
	decode(t, e.request(http.MethodPut, "/users/profile", map[string]string{
		"name": "<b>Boss</b>", "role": "professional", "profilePicture": "https://cdn.example.com/a.png",
	}, token), http.StatusOK, &got)
	assert.Equal(t, "Boss", got.Name)
	assert.Equal(t, "professional", got.Role)
	assert.Equal(t, "https://cdn.example.com/a.png", got.ProfilePicture)
	assert.True(t, got.IsAdmin)

	env := decode(t, e.request(http.MethodPut, "/users/profile", map[string]string{"profilePicture": "javascript:alert(1)"}, token), http.StatusBadRequest, nil)
	assert.Equal(t, 40093, env.Code)
	env = decode(t, e.request(http.MethodPut, "/users/profile", map[string]string{"role": "wizard"}, token), http.StatusBadRequest, nil)
	assert.Equal(t, 40092, env.Code)
	env = decode(t, e.request(http.MethodPut, "/users/profile", map[string]string{"name": "   "}, token), http.StatusBadRequest, nil)
	assert.Equal(t, 40091, env.Code)
	env = decode(t, e.rawRequest(http.MethodPut, "/users/profile", "{bad", token), http.StatusBadRequest, nil)
	assert.Equal(t, 40090, env.Code)

	decode(t, e.request(http.MethodGet, "/users/profile", nil, token), http.StatusOK, &got)
	assert.Equal(t, "Boss", got.Name)
}
