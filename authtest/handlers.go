package authtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	session "github.com/goliatone/go-auth-session"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	detailBadCredentials  = "Incorrect email or password"
	detailPending         = "Account pending approval"
	detailDuplicateEmail  = "Email already registered"
	detailInvalidToken    = "Could not validate credentials"
	detailNotEnoughRights = "Not enough permissions"
	detailUserNotFound    = "User not found"
	detailDeleteSelf      = "Cannot delete your own account"
	detailWrongPassword   = "Incorrect password"
)

type accountCtxKey struct{}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type credentials struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	NewPassword     string `json:"new_password"`
	ProfileImageURL string `json:"profile_image_url"`
	Role            string `json:"role"`
}

func (b *Backend) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	if missing := missingFields(map[string]string{"email": in.Email, "password": in.Password}); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	b.mu.Lock()
	acc := b.accountByEmail(in.Email)
	var identity session.Identity
	var hash string
	if acc != nil {
		identity, hash = *acc.identity.Clone(), acc.hash
	}
	b.mu.Unlock()

	if acc == nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.Password)) != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, detailBadCredentials)
		return
	}

	if identity.IsPending() {
		writeDetail(w, http.StatusUnauthorized, detailPending)
		return
	}

	token, err := b.issueToken(identity)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.touch(identity.ID)

	switch {
	case b.tokenOnlySignIn:
		writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "bearer"})
	case b.nestedSignIn:
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "token_type": "bearer", "user": identity})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":      token,
			"token_type":        "bearer",
			"id":                identity.ID,
			"email":             identity.Email,
			"name":              identity.Name,
			"role":              identity.Role,
			"profile_image_url": identity.ProfileImageURL,
		})
	}
}

func (b *Backend) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	if missing := missingFields(map[string]string{"name": in.Name, "email": in.Email, "password": in.Password}); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	hash, err := b.hashPassword(in.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.mu.Lock()
	if b.accountByEmail(in.Email) != nil {
		b.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, detailDuplicateEmail)
		return
	}

	role := session.RolePending
	if len(b.accounts) == 0 {
		role = session.RoleAdmin
	}

	image := in.ProfileImageURL
	if image == "" {
		image = session.DefaultProfileImage
	}
	acc := b.insert(in.Name, in.Email, hash, role, image)
	identity := *acc.identity.Clone()
	b.mu.Unlock()

	b.logger.Info("registered %s as %s", identity.Email, identity.Role)

	if !b.signUpToken {
		writeJSON(w, http.StatusOK, identity)
		return
	}

	token, err := b.issueToken(identity)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "token_type": "bearer", "user": identity})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentAccount(r.Context()))
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	if missing := missingFields(map[string]string{"name": in.Name}); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	current := currentAccount(r.Context())

	b.mu.Lock()
	acc, ok := b.accounts[current.ID]
	if !ok {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	acc.identity.Name = in.Name
	if in.ProfileImageURL != "" {
		acc.identity.ProfileImageURL = in.ProfileImageURL
	}
	acc.identity.UpdatedAt = b.now().Unix()
	identity := *acc.identity.Clone()
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, identity)
}

func (b *Backend) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	if missing := missingFields(map[string]string{"password": in.Password, "new_password": in.NewPassword}); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	current := currentAccount(r.Context())

	b.mu.Lock()
	acc, ok := b.accounts[current.ID]
	var hash string
	if ok {
		hash = acc.hash
	}
	b.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.Password)) != nil {
		writeDetail(w, http.StatusBadRequest, detailWrongPassword)
		return
	}

	newHash, err := b.hashPassword(in.NewPassword)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.mu.Lock()
	if acc, ok := b.accounts[current.ID]; ok {
		acc.hash = newHash
		acc.identity.UpdatedAt = b.now().Unix()
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	users := make([]session.Identity, 0, len(b.accounts))
	for _, acc := range b.accounts {
		users = append(users, *acc.identity.Clone())
	}
	b.mu.Unlock()

	sortByCreation(users)
	writeJSON(w, http.StatusOK, page(users, r.URL.Query().Get("skip"), r.URL.Query().Get("limit")))
}

func (b *Backend) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decodeBody(w, r, &in) {
		return
	}
	if missing := missingFields(map[string]string{"name": in.Name, "email": in.Email, "password": in.Password}); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}

	role := session.RoleUser
	if in.Role != "" {
		parsed, ok := session.ParseRole(in.Role)
		if !ok {
			writeDetail(w, http.StatusBadRequest, "Invalid role")
			return
		}
		role = parsed
	}

	hash, err := b.hashPassword(in.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.mu.Lock()
	if b.accountByEmail(in.Email) != nil {
		b.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, detailDuplicateEmail)
		return
	}
	acc := b.insert(in.Name, in.Email, hash, role, session.DefaultProfileImage)
	identity := *acc.identity.Clone()
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, identity)
}

func (b *Backend) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("role")
	if raw == "" {
		var in credentials
		if !decodeBody(w, r, &in) {
			return
		}
		raw = in.Role
	}

	role, ok := session.ParseRole(raw)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid role")
		return
	}

	b.mu.Lock()
	acc, found := b.accounts[chi.URLParam(r, "id")]
	if !found {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	acc.identity.Role = role
	acc.identity.UpdatedAt = b.now().Unix()
	identity := *acc.identity.Clone()
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, identity)
}

func (b *Backend) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current := currentAccount(r.Context())

	b.mu.Lock()
	acc, found := b.accounts[id]
	if !found {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	if acc.identity.ID == current.ID {
		b.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, detailDeleteSelf)
		return
	}
	delete(b.byEmail, normalizeEmail(acc.identity.Email))
	delete(b.accounts, id)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// authenticated rejects requests without a valid bearer token
func (b *Backend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := b.identityFromRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, detailInvalidToken)
			return
		}
		ctx := context.WithValue(r.Context(), accountCtxKey{}, identity)
		next(w, r.WithContext(ctx))
	}
}

// admin rejects requests from accounts that are not admin
func (b *Backend) admin(next http.HandlerFunc) http.HandlerFunc {
	return b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if !currentAccount(r.Context()).HasRole(session.RoleAdmin) {
			writeDetail(w, http.StatusForbidden, detailNotEnoughRights)
			return
		}
		next(w, r)
	})
}

func currentAccount(ctx context.Context) *session.Identity {
	identity, _ := ctx.Value(accountCtxKey{}).(*session.Identity)
	return identity
}

func (b *Backend) identityFromRequest(r *http.Request) (*session.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	parsed := &claims{}
	_, err := jwt.ParseWithClaims(raw, parsed, func(t *jwt.Token) (any, error) {
		return b.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.revoked[parsed.Subject] {
		return nil, errors.New("token revoked")
	}
	acc, ok := b.accounts[parsed.Subject]
	if !ok {
		return nil, errors.New("account not found")
	}
	return acc.identity.Clone(), nil
}

func (b *Backend) issueToken(identity session.Identity) (string, error) {
	now := b.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
		},
		Role: string(identity.Role),
	})
	return token.SignedString(b.signingKey)
}

func (b *Backend) hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.bcryptCost)
	return string(h), err
}

// insert must be called with b.mu held
func (b *Backend) insert(name, email, hash string, role session.UserRole, image string) *account {
	now := b.now().Unix()
	active := true
	acc := &account{
		identity: session.Identity{
			ID:              uuid.NewString(),
			Name:            name,
			Email:           normalizeEmail(email),
			Role:            role,
			ProfileImageURL: image,
			CreatedAt:       now,
			UpdatedAt:       now,
			LastActiveAt:    now,
			IsActive:        &active,
		},
		hash: hash,
	}
	b.accounts[acc.identity.ID] = acc
	b.byEmail[acc.identity.Email] = acc.identity.ID
	return acc
}

// accountByEmail must be called with b.mu held
func (b *Backend) accountByEmail(email string) *account {
	id, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return nil
	}
	return b.accounts[id]
}

func (b *Backend) touch(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.accounts[id]; ok {
		acc.identity.LastActiveAt = b.now().Unix()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Malformed request body")
		return false
	}
	return true
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range []string{"name", "email", "password", "new_password"} {
		if val, ok := fields[name]; ok && strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func writeValidation(w http.ResponseWriter, fields []string) {
	items := make([]map[string]any, 0, len(fields))
	for _, field := range fields {
		items = append(items, map[string]any{
			"loc":  []string{"body", field},
			"msg":  "Field required: " + field,
			"type": "missing",
		})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		detail = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sortByCreation(users []session.Identity) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].CreatedAt != users[j].CreatedAt {
			return users[i].CreatedAt < users[j].CreatedAt
		}
		return users[i].Email < users[j].Email
	})
}

func page(users []session.Identity, rawSkip, rawLimit string) []session.Identity {
	skip, _ := strconv.Atoi(rawSkip)
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit <= 0 {
		limit = 100
	}
	if skip < 0 || skip >= len(users) {
		return []session.Identity{}
	}
	end := skip + limit
	if end > len(users) {
		end = len(users)
	}
	return users[skip:end]
}
