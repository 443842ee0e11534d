package devserver

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxKeyClaims = "devserver.claims"

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(ctx *gin.Context) {
	req := new(loginRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		abortValidation(ctx, fieldErrors{"email": {"The email and password fields are required."}})
		return
	}
	if !strings.EqualFold(req.Email, s.cfg.AdminEmail) || req.Password != s.cfg.AdminPassword {
		abortMessage(ctx, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := s.cfg.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   s.cfg.AdminEmail,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey())
	if err != nil {
		gmw.GetLogger(ctx).Error("sign token", zap.Error(err))
		abortMessage(ctx, http.StatusInternalServerError, "Could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login success",
		"user":    s.adminUser(),
		"token":   token,
	})
}

func (s *Server) adminUser() row {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	users, _ := s.store.collection("user")
	for _, u := range users.rows {
		if strings.EqualFold(stringField(u, "email"), s.cfg.AdminEmail) {
			return u.clone()
		}
	}
	return row{"name": s.cfg.AdminName, "email": s.cfg.AdminEmail}
}

func (s *Server) signingKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte(s.secret)
}

func (s *Server) parseToken(raw string) (*jwt.RegisteredClaims, error) {
	key := s.signingKey()
	claims := new(jwt.RegisteredClaims)
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// requireAuth rejects requests without a valid, unrevoked bearer token.
func (s *Server) requireAuth(ctx *gin.Context) {
	raw, ok := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		abortMessage(ctx, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	claims, err := s.parseToken(raw)
	if err != nil {
		gmw.GetLogger(ctx).Debug("reject token", zap.Error(err))
		abortMessage(ctx, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		abortMessage(ctx, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	ctx.Set(ctxKeyClaims, claims)
	ctx.Next()
}

func (s *Server) logout(ctx *gin.Context) {
	if claims, ok := ctx.Get(ctxKeyClaims); ok {
		s.mu.Lock()
		s.revoked[claims.(*jwt.RegisteredClaims).ID] = struct{}{}
		s.mu.Unlock()
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logout success"})
}

func (s *Server) me(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": s.adminUser()})
}

// RevokeAll invalidates every issued token by rotating the signing key.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret += "-" + uuid.NewString()
}
