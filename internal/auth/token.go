package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyConfig selects the signing key material
type KeyConfig struct {
	Secret         string // HS256 shared secret
	PrivateKeyPath string // RS256 private key (PEM)
	PublicKeyPath  string // RS256 public key or X.509 certificate (PEM)
	Production     bool   // Key load failures are fatal in production
}

// TokenConfig holds issuer and lifetimes for issued tokens
type TokenConfig struct {
	Issuer               string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RememberMeAccessTTL  time.Duration
	RememberMeRefreshTTL time.Duration
}

// TokenManager signs and verifies JWTs with either HS256 or RS256
type TokenManager struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	config    TokenConfig
	now       func() time.Time
}

// NewTokenManager loads key material and returns a TokenManager.
// When asymmetric keys are configured but unreadable it fails in production,
// otherwise logs a warning and falls back to the shared secret.
func NewTokenManager(keys KeyConfig, cfg TokenConfig, logger *slog.Logger) (*TokenManager, error) {
	if keys.PrivateKeyPath != "" {
		privateKey, publicKey, err := loadRSAKeys(keys.PrivateKeyPath, keys.PublicKeyPath)
		if err == nil {
			logger.Info("token signing configured", slog.String("algorithm", "RS256"))
			return newTokenManager(jwt.SigningMethodRS256, privateKey, publicKey, cfg), nil
		}

		if keys.Production {
			return nil, fmt.Errorf("%w: %v", models.ErrKeyLoad, err)
		}

		logger.Warn("failed to load RSA signing keys, falling back to HS256",
			slog.String("private_key_path", keys.PrivateKeyPath),
			slog.String("error", err.Error()),
		)
	}

	if keys.Secret == "" {
		return nil, fmt.Errorf("%w: no signing secret configured", models.ErrKeyLoad)
	}

	logger.Info("token signing configured", slog.String("algorithm", "HS256"))
	return NewHMACTokenManager(keys.Secret, cfg), nil
}

// NewHMACTokenManager creates an HS256 TokenManager
func NewHMACTokenManager(secret string, cfg TokenConfig) *TokenManager {
	return newTokenManager(jwt.SigningMethodHS256, []byte(secret), []byte(secret), cfg)
}

func newTokenManager(method jwt.SigningMethod, signKey, verifyKey any, cfg TokenConfig) *TokenManager {
	return &TokenManager{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		config:    cfg,
		now:       time.Now,
	}
}

func loadRSAKeys(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privatePEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}

	if publicPath == "" {
		return privateKey, &privateKey.PublicKey, nil
	}

	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	// Accepts PKIX and PKCS1 public keys as well as certificates
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}

	if !privateKey.PublicKey.Equal(publicKey) {
		return nil, nil, errors.New("public key does not match private key")
	}

	return privateKey, publicKey, nil
}

// SetClock overrides the time source used for iat, exp and expiry checks
func (tm *TokenManager) SetClock(now func() time.Time) {
	tm.now = now
}

// Algorithm returns the JWT alg in use
func (tm *TokenManager) Algorithm() string {
	return tm.method.Alg()
}

// Sign issues a token for payload valid for ttl. A zero ttl uses the access token lifetime;
// a negative ttl yields a token that is already expired.
// iat has second precision on the wire, so IssuedAt is truncated to the second.
func (tm *TokenManager) Sign(payload models.TokenPayload, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = tm.config.AccessTTL
	}

	issuedAt := payload.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = tm.now()
	}
	issuedAt = issuedAt.UTC().Truncate(time.Second)

	claims := &models.TokenClaims{
		Email:      payload.Email,
		Role:       payload.Role,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		RememberMe: payload.RememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			Issuer:    tm.config.Issuer,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(tm.method, claims)
	tokenString, err := token.SignedString(tm.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Verify checks signature and expiry and returns the claims.
// Errors wrap models.ErrTokenExpired or models.ErrTokenInvalid.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithTimeFunc(tm.now),
		jwt.WithExpirationRequired(),
	}
	if tm.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.verifyKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}

// Inspect parses the claims after checking the signature, tolerating expiry.
// Used where an expired token is still acceptable, such as logout.
func (tm *TokenManager) Inspect(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.Verify(tokenString)
	if err == nil {
		return claims, nil
	}
	if !errors.Is(err, models.ErrTokenExpired) {
		return nil, err
	}

	claims = &models.TokenClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.verifyKey, nil
	}, jwt.WithValidMethods([]string{tm.method.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	return claims, nil
}

// GenerateTokenPair signs an access and a refresh token from the same payload
func (tm *TokenManager) GenerateTokenPair(payload models.TokenPayload, rememberMe bool) (*models.TokenPair, error) {
	accessTTL, refreshTTL := tm.config.AccessTTL, tm.config.RefreshTTL
	if rememberMe {
		accessTTL, refreshTTL = tm.config.RememberMeAccessTTL, tm.config.RememberMeRefreshTTL
	}

	if payload.IssuedAt.IsZero() {
		payload.IssuedAt = tm.now()
	}
	payload.RememberMe = rememberMe

	accessToken, err := tm.Sign(payload, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := tm.Sign(payload, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    FormatTTL(accessTTL),
	}, nil
}

// FormatTTL renders a lifetime label such as "7d", "24h", "15m" or "90s".
// A single day is reported in hours.
func FormatTTL(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d > day && d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
