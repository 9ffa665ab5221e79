// Package apitest runs an in-process Galactavista backend for tests. It
// speaks the same envelope and auth contract as the production API so the
// SDK can be exercised end to end without a real server.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/galactavista/galactavista-go/types"
)

type userRecord struct {
	user         types.User
	passwordHash []byte
}

// Server is an in-memory backend with the production API surface.
type Server struct {
	*httptest.Server

	jwtKey []byte

	mu           sync.Mutex
	users        map[string]*userRecord // keyed by email
	nextUserID   int64
	properties   map[int64]types.Property
	nextPropID   int64
	media        map[int64][]types.MediaFile
	nextMediaID  int64
	requestCount map[string]int
}

// New starts a Server and registers cleanup with t.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		jwtKey:       []byte("apitest-secret"),
		users:        make(map[string]*userRecord),
		properties:   make(map[int64]types.Property),
		media:        make(map[int64][]types.MediaFile),
		requestCount: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root including the version prefix.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

// RequestCount reports how many requests hit the given path.
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount[path]
}

// SeedUser registers an account directly and returns it.
func (s *Server) SeedUser(t testing.TB, email, password string, role types.UserRole) types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := types.User{
		ID:        s.nextUserID,
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.users[email] = &userRecord{user: user, passwordHash: hash}
	return user
}

// SeedProperty inserts a listing directly and returns it.
func (s *Server) SeedProperty(t testing.TB, p types.Property) types.Property {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPropID++
	p.ID = s.nextPropID
	if p.Status == "" {
		p.Status = types.PropertyStatusAvailable
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	s.properties[p.ID] = p
	return p
}

// Token mints a valid bearer token for the given user.
func (s *Server) Token(t testing.TB, user types.User) string {
	t.Helper()
	return s.mintToken(t, user, time.Now().Add(24*time.Hour))
}

// ExpiredToken mints a structurally valid but expired bearer token.
func (s *Server) ExpiredToken(t testing.TB, user types.User) string {
	t.Helper()
	return s.mintToken(t, user, time.Now().Add(-time.Hour))
}

func (s *Server) mintToken(t testing.TB, user types.User, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     expires.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtKey)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.countRequests)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/properties", s.handleListProperties)
		r.Get("/properties/{id}", s.handleGetProperty)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/profile", s.handleGetProfile)
			r.Put("/auth/profile", s.handleUpdateProfile)
			r.Post("/properties", s.handleCreateProperty)
			r.Put("/properties/{id}", s.handleUpdateProperty)
			r.Delete("/properties/{id}", s.handleDeleteProperty)
			r.Get("/properties/agent", s.handleAgentProperties)
			r.Post("/properties/{id}/upload", s.handleUpload)
			r.Get("/properties/{id}/media", s.handleListMedia)
			r.Delete("/properties/{id}/media/{fileID}", s.handleDeleteMedia)
		})
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requestCount[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.NewParser().ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
			return s.jwtKey, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		email, _ := claims["email"].(string)
		r.Header.Set("X-Test-User", email)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) currentUser(r *http.Request) (*userRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[r.Header.Get("X-Test-User")]
	return rec, ok
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, types.HealthStatus{Status: "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.UserRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash failure")
		return
	}
	s.nextUserID++
	user := types.User{
		ID:        s.nextUserID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		Phone:     req.Phone,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.users[req.Email] = &userRecord{user: user, passwordHash: hash}
	writeData(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.UserLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	rec, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	claims := jwt.MapClaims{
		"user_id": rec.user.ID,
		"email":   rec.user.Email,
		"role":    string(rec.user.Role),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token failure")
		return
	}
	writeData(w, http.StatusOK, types.LoginResponse{Token: token, User: rec.user})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	writeData(w, http.StatusOK, rec.user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	var req types.UserUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	if req.FirstName != nil {
		rec.user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		rec.user.LastName = *req.LastName
	}
	if req.Phone != nil {
		rec.user.Phone = req.Phone
	}
	if req.Avatar != nil {
		rec.user.Avatar = req.Avatar
	}
	rec.user.UpdatedAt = time.Now().UTC()
	user := rec.user
	s.mu.Unlock()
	writeData(w, http.StatusOK, user)
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	matched := make([]types.Property, 0, len(s.properties))
	for _, p := range s.properties {
		if matchesFilter(p, q) {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	writeData(w, http.StatusOK, paginate(matched, q))
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	p, ok := s.properties[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	var req types.PropertyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	country := "US"
	if req.Country != nil {
		country = *req.Country
	}
	s.mu.Lock()
	s.nextPropID++
	p := types.Property{
		ID:           s.nextPropID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      country,
		PropertyType: req.PropertyType,
		Status:       types.PropertyStatusAvailable,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		SquareFeet:   req.SquareFeet,
		YearBuilt:    req.YearBuilt,
		LotSize:      req.LotSize,
		Features:     req.Features,
		Images:       req.Images,
		Agent:        rec.user,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	s.properties[p.ID] = p
	s.mu.Unlock()
	writeData(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req types.PropertyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	p, ok := s.properties[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.VRModelURL != nil {
		p.VRModelURL = req.VRModelURL
	}
	p.UpdatedAt = time.Now().UTC()
	s.properties[id] = p
	s.mu.Unlock()
	writeData(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	delete(s.properties, id)
	s.mu.Unlock()
	writeMessage(w, http.StatusOK, "property deleted")
}

func (s *Server) handleAgentProperties(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	s.mu.Lock()
	matched := make([]types.Property, 0)
	for _, p := range s.properties {
		if p.Agent.ID == rec.user.ID {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	writeData(w, http.StatusOK, paginate(matched, r.URL.Query()))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read failure")
		return
	}
	s.mu.Lock()
	s.nextMediaID++
	media := types.MediaFile{
		ID:         s.nextMediaID,
		PropertyID: id,
		FileName:   header.Filename,
		FileURL:    fmt.Sprintf("/uploads/properties/%s", header.Filename),
		FileType:   header.Header.Get("Content-Type"),
		FileSize:   size,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.media[id] = append(s.media[id], media)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, media)
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	media := append([]types.MediaFile(nil), s.media[id]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, media)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	fileID, _ := strconv.ParseInt(chi.URLParam(r, "fileID"), 10, 64)
	s.mu.Lock()
	kept := s.media[id][:0]
	for _, m := range s.media[id] {
		if m.ID != fileID {
			kept = append(kept, m)
		}
	}
	s.media[id] = kept
	s.mu.Unlock()
	writeMessage(w, http.StatusOK, "media deleted")
}

func matchesFilter(p types.Property, q map[string][]string) bool {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	if query := get("query"); query != "" {
		title := strings.ToLower(p.Title)
		city := strings.ToLower(p.City)
		if !strings.Contains(title, strings.ToLower(query)) && !strings.Contains(city, strings.ToLower(query)) {
			return false
		}
	}
	if v := get("min_price"); v != "" {
		if min, err := strconv.ParseFloat(v, 64); err == nil && p.Price < min {
			return false
		}
	}
	if v := get("max_price"); v != "" {
		if max, err := strconv.ParseFloat(v, 64); err == nil && p.Price > max {
			return false
		}
	}
	if v := get("property_type"); v != "" && string(p.PropertyType) != v {
		return false
	}
	if v := get("city"); v != "" && !strings.EqualFold(p.City, v) {
		return false
	}
	if v := get("state"); v != "" && !strings.EqualFold(p.State, v) {
		return false
	}
	if v := get("status"); v != "" && string(p.Status) != v {
		return false
	}
	if v := get("bedrooms"); v != "" {
		want, err := strconv.Atoi(v)
		if err == nil && (p.Bedrooms == nil || *p.Bedrooms < want) {
			return false
		}
	}
	return true
}

func paginate(items []types.Property, q map[string][]string) types.PaginatedResponse[types.Property] {
	page := types.DefaultPage
	pageSize := types.DefaultPageSize
	if vs := q["page"]; len(vs) > 0 {
		if n, err := strconv.Atoi(vs[0]); err == nil && n > 0 {
			page = n
		}
	}
	if vs := q["page_size"]; len(vs) > 0 {
		if n, err := strconv.Atoi(vs[0]); err == nil && n > 0 {
			pageSize = n
		}
	}
	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return types.PaginatedResponse[types.Property]{
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(total),
		TotalPages: totalPages,
		Data:       items[start:end],
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
